// SPDX-License-Identifier: MIT

package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docport/docport/internal/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher observes the guide root and fires a refresh trigger when Markdown
// files change. Editor save storms are debounced, and a rate limiter caps
// how often the trigger can fire even under continuous churn.
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  func(ctx context.Context)
	limiter  *rate.Limiter
}

// NewWatcher creates a watcher for the given guide root. trigger is invoked
// at most once per debounce window and never more than once per two seconds.
func NewWatcher(root string, debounce time.Duration, trigger func(ctx context.Context)) *Watcher {
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Run watches until ctx is cancelled. It returns the error that created the
// watcher if setup fails; watch-loop errors are logged and survived.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithComponent("watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create guide watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warn().Err(err).Msg("close guide watcher")
		}
	}()

	if err := addRecursive(watcher, w.root); err != nil {
		return err
	}

	logger.Info().
		Str(log.FieldEvent, "watch.started").
		Str(log.FieldPath, w.root).
		Dur("debounce", w.debounce).
		Msg("watching guide root for changes")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			// New sub-directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = addRecursive(watcher, event.Name)
				}
			}
			logger.Debug().
				Str(log.FieldEvent, "watch.change").
				Str(log.FieldPath, event.Name).
				Str("op", event.Op.String()).
				Msg("guide change detected")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			if !w.limiter.Allow() {
				// Re-arm so the pending change is not lost, just deferred.
				timer.Reset(w.debounce)
				continue
			}
			logger.Info().
				Str(log.FieldEvent, "watch.trigger").
				Msg("guide changed, triggering refresh")
			w.trigger(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("guide watcher error")
		}
	}
}

// relevant reports whether an event should schedule a refresh: Markdown
// writes, creations, removals and renames; directory events pass through so
// moves of whole sections are picked up.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ""
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The subtree may have vanished between event and walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}
