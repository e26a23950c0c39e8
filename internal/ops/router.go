// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ops serves the operational HTTP surface of the daemon: probes,
// Prometheus metrics and the optional session event stream.
package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/rcsshare/internal/health"
)

// RouterConfig selects the middleware and routes of the ops router.
type RouterConfig struct {
	Health *health.Manager
	// Events is mounted at /events when set.
	Events http.Handler
	// TracingService enables request tracing when non-empty.
	TracingService string
	RateLimit      int
	RateWindow     time.Duration
}

// NewRouter builds the ops router. Middleware order: recovery, request id,
// metrics, tracing, access log, rate limit.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(Metrics)
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	r.Use(AccessLog)
	if cfg.RateLimit > 0 {
		r.Use(RateLimit(cfg.RateLimit, cfg.RateWindow))
	}

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.ServeHealth)
		r.Get("/readyz", cfg.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())
	if cfg.Events != nil {
		r.Handle("/events", cfg.Events)
	}
	return r
}
