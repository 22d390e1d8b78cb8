// Package media opens result links outside the terminal.
package media

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/validation"
)

// Launcher hands URLs to the system opener after validating them.
type Launcher struct {
	command   string
	args      []string
	detector  *Detector
	validator *validation.URLValidator
	start     func(*exec.Cmd) error
}

func NewLauncher(cfg *config.Config) *Launcher {
	detector, err := NewDetector()
	if err != nil {
		debuglog.Warnf("media: %v", err)
		detector = &Detector{rules: map[Kind]kindRule{}}
	}

	validator := validation.NewURLValidator()
	if cfg.Feeds.AllowPrivateHosts {
		validator = validation.NewPermissiveURLValidator()
	}

	l := &Launcher{
		detector:  detector,
		validator: validator,
		start:     startDetached,
	}

	// A configured opener wins when it is installed. Otherwise use the
	// platform entry from the target table.
	if fields := strings.Fields(cfg.UI.Opener); len(fields) > 0 && findCommand(fields[0]) != "" {
		l.command, l.args = fields[0], fields[1:]
	} else {
		l.command, l.args = detector.DefaultOpener()
	}
	return l
}

// Command returns the opener and its leading arguments.
func (l *Launcher) Command() (string, []string) {
	return l.command, l.args
}

// Kind classifies rawURL without opening it.
func (l *Launcher) Kind(rawURL string) Kind {
	return l.detector.Detect(rawURL)
}

// Open validates rawURL and starts the opener on it. The opener runs
// detached; Open does not wait for it.
func (l *Launcher) Open(rawURL string) (Kind, error) {
	target, err := l.validator.Normalize(rawURL)
	if err != nil {
		return KindPage, err
	}
	if l.command == "" {
		return KindPage, fmt.Errorf("no application found to open URL")
	}

	kind := l.detector.Detect(target)
	args := append(append([]string{}, l.args...), target)
	cmd := exec.Command(l.command, args...)
	if err := l.start(cmd); err != nil {
		return kind, fmt.Errorf("failed to start %s: %w", l.command, err)
	}
	debuglog.WithFields(map[string]any{"kind": kind.String(), "url": target}).Debugf("opened link")
	return kind, nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func findCommand(commands ...string) string {
	for _, cmd := range commands {
		if _, err := exec.LookPath(cmd); err == nil {
			return cmd
		}
	}
	return ""
}
