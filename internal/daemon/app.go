// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/docport/docport/internal/config"
)

// App owns the long-lived runtime: config reloads, watchers and background
// subsystems. Server management is delegated to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	reloadSignal os.Signal
	background   []namedTask
}

type namedTask struct {
	name string
	run  func(ctx context.Context) error
}

// NewApp creates the app orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		holder:       holder,
		reloadSignal: syscall.SIGHUP,
	}
}

// AddBackground registers a background task that runs for the lifetime of
// the app. A returned error stops the whole app.
func (a *App) AddBackground(name string, run func(ctx context.Context) error) {
	a.background = append(a.background, namedTask{name: name, run: run})
}

// Run starts all subsystems and blocks until ctx is cancelled or a fatal
// error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best effort: a missing config file should not stop
	// startup.
	if a.holder != nil {
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// SIGHUP triggers a manual config reload.
	if a.holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.holder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	for _, task := range a.background {
		task := task
		g.Go(func() error {
			a.logger.Debug().Str("task", task.name).Msg("starting background task")
			if err := task.run(ctx); err != nil {
				a.logger.Error().Err(err).Str("task", task.name).Msg("background task failed")
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
