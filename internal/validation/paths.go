package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath wraps every path rejection.
var ErrUnsafePath = errors.New("unsafe path")

const maxPathLength = 4096

// ExpandPath expands a leading ~/ and returns a clean absolute path. It
// rejects control characters and parent-directory components.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsafePath)
	}
	if len(path) > maxPathLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrUnsafePath, maxPathLength)
	}
	for _, r := range path {
		if r < 32 {
			return "", fmt.Errorf("%w: control characters", ErrUnsafePath)
		}
	}
	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return "", fmt.Errorf("%w: parent directory reference in %s", ErrUnsafePath, path)
		}
	}

	switch {
	case path == "~":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = home
	case strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	case strings.HasPrefix(path, "~"):
		return "", fmt.Errorf("%w: ~user expansion not supported", ErrUnsafePath)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}
	return abs, nil
}

// EnsureDirectory expands path and creates it when missing.
func EnsureDirectory(path string) (string, error) {
	dir, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("checking directory: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrUnsafePath, dir)
	}
	return dir, nil
}

// FilePath expands path and checks it does not name a directory.
func FilePath(path string) (string, error) {
	file, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(file); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrUnsafePath, file)
	}
	return file, nil
}

// DataDir returns ~/.devportal.
func DataDir() (string, error) {
	return ExpandPath("~/.devportal")
}
