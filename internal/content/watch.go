package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pders01/devportal/internal/debuglog"
)

// DefaultWatchDelay groups bursts of editor writes into one reload.
const DefaultWatchDelay = 300 * time.Millisecond

// Watch reloads the store whenever a markdown file below the content root
// changes and then calls onChange with the reload result. It blocks until
// ctx is cancelled.
func (s *Store) Watch(ctx context.Context, delay time.Duration, onChange func(error)) error {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := addRecursive(w, s.dir); err != nil {
		return err
	}

	// fire is nil while no reload is pending; each event pushes it back.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := addRecursive(w, ev.Name); err != nil {
					debuglog.Warnf("content: watching %s: %v", ev.Name, err)
				}
				continue
			}
			if !isMarkdown(ev.Name) || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
				continue
			}
			debuglog.Debugf("content: %s %s", ev.Op, ev.Name)
			fire = time.After(delay)

		case <-fire:
			fire = nil
			err := s.Reload()
			if err != nil {
				debuglog.Errorf("content: reload failed: %v", err)
			}
			if onChange != nil {
				onChange(err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			debuglog.Warnf("content: watcher error: %v", err)
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
