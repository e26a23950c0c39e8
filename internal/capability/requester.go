// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capability

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/resilience"
)

// Querier performs the capability exchange with one contact.
type Querier interface {
	Query(ctx context.Context, contact string) error
}

// Config paces capability refreshes.
type Config struct {
	// TTL suppresses repeated refreshes of the same contact.
	TTL           time.Duration
	RatePerSecond float64
	Burst         int
	QueueSize     int
	QueryTimeout  time.Duration
	// BreakerThreshold consecutive failed queries pause refreshes for
	// BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:           time.Minute,
		RatePerSecond: 5,
		Burst:         10,
		QueueSize:     256,
		QueryTimeout:  10 * time.Second,

		BreakerThreshold: 5,
		BreakerReset:     30 * time.Second,
	}
}

// Requester queues refresh requests and runs them on a single worker.
// RequestCapabilities never blocks; when the queue is full the request is
// dropped.
type Requester struct {
	cfg     Config
	querier Querier
	recent  Recent
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	queue   chan string
	logger  zerolog.Logger
}

func NewRequester(cfg Config, querier Querier, recent Recent, logger zerolog.Logger) *Requester {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = def.BreakerReset
	}
	if recent == nil {
		recent = NewMemoryRecent(0)
	}
	return &Requester{
		cfg:     cfg,
		querier: querier,
		recent:  recent,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: resilience.NewCircuitBreaker("capability", cfg.BreakerThreshold, cfg.BreakerReset),
		queue:   make(chan string, cfg.QueueSize),
		logger:  logger.With().Str(log.FieldComponent, "capability").Logger(),
	}
}

// RequestCapabilities enqueues a refresh for contact.
func (r *Requester) RequestCapabilities(contact string) {
	if contact == "" {
		return
	}
	select {
	case r.queue <- contact:
		requestsTotal.WithLabelValues(resultQueued).Inc()
	default:
		requestsTotal.WithLabelValues(resultDropped).Inc()
		r.logger.Warn().Str(log.FieldContact, contact).Msg("capability queue full, request dropped")
	}
}

// Run drains the queue until ctx is done.
func (r *Requester) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case contact := <-r.queue:
			if err := r.process(ctx, contact); err != nil && errors.Is(err, context.Canceled) {
				return nil
			}
		}
	}
}

func (r *Requester) process(ctx context.Context, contact string) error {
	fresh, err := r.recent.MarkIfAbsent(ctx, contact, r.cfg.TTL)
	if err != nil {
		// a broken de-duplication store must not stop refreshes
		r.logger.Warn().Err(err).Str(log.FieldContact, contact).Msg("capability de-duplication failed")
		fresh = true
	}
	if !fresh {
		requestsTotal.WithLabelValues(resultDeduped).Inc()
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	err = r.breaker.Execute(ctx, func(ctx context.Context) error {
		qctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
		defer cancel()
		return r.querier.Query(qctx, contact)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			requestsTotal.WithLabelValues(resultShed).Inc()
			r.logger.Debug().Str(log.FieldContact, contact).Msg("capability query shed, breaker open")
		} else {
			requestsTotal.WithLabelValues(resultFailed).Inc()
			r.logger.Warn().Err(err).Str(log.FieldContact, contact).Msg("capability query failed")
		}
		// allow a retry on the next error instead of waiting out the TTL
		if ferr := r.recent.Forget(context.WithoutCancel(ctx), contact); ferr != nil {
			r.logger.Debug().Err(ferr).Msg("forget contact")
		}
		return err
	}
	requestsTotal.WithLabelValues(resultSent).Inc()
	r.logger.Debug().Str(log.FieldContact, contact).Msg("capabilities requested")
	return nil
}
