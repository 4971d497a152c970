// SPDX-License-Identifier: MIT

package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sozzifer/microblog/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher rebuilds the CSS bundle when a template covered by the
// content globs changes. Events are debounced so an editor save burst
// triggers one build.
type Watcher struct {
	root     string
	matcher  *Matcher
	debounce time.Duration
	onChange func(ctx context.Context)
}

// NewWatcher creates a watcher over root. onChange runs after the
// debounce window on every relevant change.
func NewWatcher(root string, m *Matcher, debounce time.Duration, onChange func(ctx context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{root: root, matcher: m, debounce: debounce, onChange: onChange}
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addDirs(fsw, w.root); err != nil {
		return err
	}

	logger := log.WithComponent("assets")
	logger.Info().
		Str("event", "assets.watching").
		Str("root", w.root).
		Msg("watching templates")

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// New subdirectories must be watched before files land in them.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addDirs(fsw, event.Name)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.matchesEvent(event.Name) {
				continue
			}

			logger.Debug().
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("template changed")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.onChange(ctx)
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("fs watcher error")
		}
	}
}

// matchesEvent maps an absolute event path back to a root-relative one
// and asks the matcher.
func (w *Watcher) matchesEvent(path string) bool {
	rel, err := filepath.Rel(filepath.Dir(w.root), path)
	if err != nil {
		return false
	}
	return w.matcher.Match(filepath.ToSlash(rel))
}

// addDirs registers dir and every subdirectory with the watcher.
func (w *Watcher) addDirs(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
