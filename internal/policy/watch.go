// SPDX-License-Identifier: MIT

package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads documents when their files change. Parent directories are
// watched rather than the files themselves, because editors and config
// management tools replace files atomically via rename.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.RLock()
	watched := make(map[string]Kind, len(m.paths)) // absolute file path -> kind
	dirs := make(map[string]struct{})
	for kind, path := range m.paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			m.mu.RUnlock()
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		watched[abs] = kind
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	m.mu.RUnlock()

	if len(watched) == 0 {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	pending := make(map[Kind]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			kind, ok := watched[abs]
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending[kind] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(500 * time.Millisecond)
			} else {
				timer.Reset(500 * time.Millisecond)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			for kind := range pending {
				delete(pending, kind)
				if err := m.loadOne(ctx, kind); err != nil {
					m.logger.Warn().Err(err).
						Str("kind", string(kind)).
						Msg("policy document reload failed")
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn().Err(err).Msg("policy watcher error")
		}
	}
}
