// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the session service to its store, signaling link,
// capability requester and ops HTTP surface, and owns their lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/bus"
	"github.com/ManuGH/rcsshare/internal/capability"
	"github.com/ManuGH/rcsshare/internal/config"
	sessionmanager "github.com/ManuGH/rcsshare/internal/domain/session/manager"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
	"github.com/ManuGH/rcsshare/internal/health"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/ops"
	"github.com/ManuGH/rcsshare/internal/telemetry"
	"github.com/ManuGH/rcsshare/internal/transport/msrpws"
	"github.com/ManuGH/rcsshare/internal/transport/sipws"
)

// Runtime is the wired daemon. Build it with Bootstrap; Close releases what
// Bootstrap opened when the daemon never started.
type Runtime struct {
	Config    config.AppConfig
	Logger    zerolog.Logger
	Telemetry *telemetry.Provider
	Store     store.StateStore
	Signaling *Signaling
	Bus       *bus.MemoryBus
	Service   *sessionmanager.Service
	Requester *capability.Requester
	Sweeper   *sessionmanager.Sweeper
	Health    *health.Manager
	Events    *ops.EventStream
	Handler   http.Handler

	recent capability.Recent
}

// Bootstrap opens the store and builds every component from cfg. Nothing
// is started.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	logger := log.WithComponent("daemon")
	rt := &Runtime{Config: cfg, Logger: logger}

	tp, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		// Tracing is optional; the provider falls back to noop.
		logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
		tp, _ = telemetry.NewProvider(ctx, telemetry.Config{})
	}
	rt.Telemetry = tp

	st, err := store.OpenStateStore(ctx, cfg.Store.Backend, cfg.Store.Target())
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("open session store: %w", err)
	}
	rt.Store = store.NewInstrumentedStore(st, cfg.Store.Backend)
	logger.Info().
		Str("backend", cfg.Store.Backend).
		Str(log.FieldPath, config.MaskURL(cfg.Store.Target())).
		Msg("session store opened")

	localURI, err := cfg.Signaling.ParsedLocalURI()
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("local uri: %w", err)
	}

	rt.Signaling = NewSignaling(sipws.Config{
		URL:          cfg.Signaling.URL,
		WriteTimeout: cfg.Signaling.WriteTimeout,
		PingInterval: cfg.Signaling.PingInterval,
	}, logger)

	switch cfg.Capability.Backend {
	case "redis":
		rr, err := capability.NewRedisRecent(cfg.Capability.Redis, logger)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("capability cache: %w", err)
		}
		rt.recent = rr
	default:
		rt.recent = capability.NewMemoryRecent(time.Minute)
	}
	rt.Requester = capability.NewRequester(
		cfg.Capability.RequesterConfig(),
		&capability.OptionsQuerier{Transport: rt.Signaling, Local: localURI, Domain: cfg.Signaling.Domain},
		rt.recent,
		logger,
	)

	rt.Bus = bus.NewMemoryBus()
	mirror := &bus.Mirror{Bus: rt.Bus, Logger: logger}

	decision, err := sessionmanager.ParseIncomingDecision(cfg.Signaling.IncomingPolicy)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	rt.Service, err = sessionmanager.NewService(sessionmanager.Config{
		LocalURI:      localURI,
		Domain:        cfg.Signaling.Domain,
		ByeTimeout:    cfg.Signaling.ByeTimeout,
		InviteTimeout: cfg.Signaling.InviteTimeout,
		ReportPath:    cfg.Recovery.ReportPath,
	}, sessionmanager.Deps{
		Store:        rt.Store,
		Transport:    rt.Signaling,
		Capabilities: rt.Requester,
		Observers:    []ports.Listener{mirror},
		Tracer:       telemetry.SessionTracer(),
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	opener := &msrpws.Opener{ChunkSize: cfg.Media.ChunkSize}
	rt.Signaling.SetHandler(&sessionmanager.Dispatcher{
		Svc:       rt.Service,
		OpenMedia: opener.Open,
		Resolve:   incomingResolver(sharing.Endpoint{Host: localURI.Host, Port: cfg.Media.Port}),
		Policy:    sessionmanager.FixedPolicy(decision),
	})

	rt.Sweeper = &sessionmanager.Sweeper{Svc: rt.Service, Conf: sessionmanager.SweeperConfig{
		Interval:         cfg.Retention.Interval,
		SessionRetention: cfg.Retention.TerminalTTL,
		OrphanGrace:      cfg.Retention.OrphanGrace,
	}}

	rt.Health = health.NewManager(cfg.Version)
	rt.registerChecks()

	if cfg.HTTP.EventStream {
		rt.Events = ops.NewEventStream(rt.Bus)
	}
	routerCfg := ops.RouterConfig{
		Health:     rt.Health,
		RateLimit:  cfg.HTTP.RateLimit,
		RateWindow: cfg.HTTP.RateWindow,
	}
	if rt.Events != nil {
		routerCfg.Events = rt.Events
	}
	if rt.Telemetry.Enabled() {
		routerCfg.TracingService = cfg.Telemetry.ServiceName
	}
	rt.Handler = ops.NewRouter(routerCfg)
	return rt, nil
}

func (rt *Runtime) registerChecks() {
	rt.Health.RegisterChecker(&health.RecoveryChecker{
		State: rt.Service,
		Failed: func() int {
			rep, _ := rt.Service.RecoveryReport()
			return rep.Failed
		},
	})
	rt.Health.RegisterChecker(health.NewFuncChecker("session_store", func(ctx context.Context) error {
		_, err := rt.Store.GetSession(ctx, "health", "probe")
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}))
	rt.Health.RegisterChecker(health.NewFuncChecker("signaling", rt.Signaling.Probe))
	if rr, ok := rt.recent.(*capability.RedisRecent); ok {
		rt.Health.RegisterChecker(health.Informational(health.NewFuncChecker("capability_cache", rr.HealthCheck)))
	}
}

// RegisterHooks installs the shutdown sequence on m. Hooks run in reverse:
// event streams end, live sessions close while signaling is still up, then
// the signaling link, caches, store and tracer are released.
func (rt *Runtime) RegisterHooks(m Manager, stopSignaling context.CancelFunc) {
	m.RegisterShutdownHook("resources", rt.Close)
	m.RegisterShutdownHook("signaling", func(context.Context) error {
		stopSignaling()
		return nil
	})
	m.RegisterShutdownHook("sessions", rt.Service.Shutdown)
	if rt.Events != nil {
		m.RegisterShutdownHook("event-streams", rt.Events.Close)
	}
}

// Close releases the capability cache, store and tracer.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	switch r := rt.recent.(type) {
	case *capability.RedisRecent:
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("capability cache: %w", err))
		}
	case *capability.MemoryRecent:
		r.Stop()
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session store: %w", err))
		}
	}
	if rt.Telemetry != nil {
		if err := rt.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
