// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/rcsshare/internal/config"
	"github.com/ManuGH/rcsshare/internal/log"
)

// App owns the long-lived runtime lifecycle (watchers, reload wiring,
// signaling, background loops) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	runtime      *Runtime
	cfgHolder    *config.ConfigHolder
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(logger zerolog.Logger, manager Manager, runtime *Runtime, cfgHolder *config.ConfigHolder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		runtime:      runtime,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.runtime == nil {
		return ErrMissingRuntime
	}
	rt := a.runtime

	// Signaling outlives ctx so live sessions can still send BYE during
	// shutdown; the "signaling" hook stops it.
	sigCtx, stopSignaling := context.WithCancel(context.WithoutCancel(ctx))
	rt.RegisterHooks(a.manager, stopSignaling)

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
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
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		return rt.Signaling.Run(sigCtx)
	})

	// Startup reconciliation. Sessions are refused until it returns; a
	// failed scan is logged and left to the sweeper.
	g.Go(func() error {
		rep, err := rt.Service.Recover(ctx)
		if err != nil {
			a.logger.Error().Err(err).Str(log.FieldEvent, "recovery.failed").Msg("startup reconciliation failed")
			return nil
		}
		a.logger.Info().
			Str(log.FieldEvent, "recovery.done").
			Int("scanned", rep.Scanned).
			Int("recovered_count", rep.Recovered).
			Int("failed_count", rep.Failed).
			Msg("startup reconciliation finished")
		return nil
	})

	g.Go(func() error {
		rt.Sweeper.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return rt.Requester.Run(ctx)
	})

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
