// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/transport/sipws"
)

const (
	minRedialBackoff = 500 * time.Millisecond
	maxRedialBackoff = 30 * time.Second
)

type dialFunc func(ctx context.Context, conf sipws.Config, h sipws.Handler) (*sipws.Client, error)

// Signaling keeps one SIP-over-websocket connection up, redialing with
// exponential backoff. Sends fail fast while the connection is down.
type Signaling struct {
	conf    sipws.Config
	handler sipws.Handler
	dial    dialFunc
	logger  zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	current atomic.Pointer[sipws.Client]
}

func NewSignaling(conf sipws.Config, logger zerolog.Logger) *Signaling {
	return &Signaling{
		conf:       conf,
		dial:       sipws.Dial,
		logger:     logger.With().Str(log.FieldComponent, "signaling").Str(log.FieldURL, conf.URL).Logger(),
		minBackoff: minRedialBackoff,
		maxBackoff: maxRedialBackoff,
	}
}

// SetHandler installs the inbound message handler. It must be called before Run.
func (s *Signaling) SetHandler(h sipws.Handler) { s.handler = h }

func (s *Signaling) Send(ctx context.Context, req *sip.Request) error {
	c := s.current.Load()
	if c == nil {
		return ErrSignalingDown
	}
	return c.Send(ctx, req)
}

func (s *Signaling) Respond(ctx context.Context, res *sip.Response) error {
	c := s.current.Load()
	if c == nil {
		return ErrSignalingDown
	}
	return c.Respond(ctx, res)
}

// Connected reports whether a connection is currently up.
func (s *Signaling) Connected() bool { return s.current.Load() != nil }

// Probe is the readiness check of the signaling link.
func (s *Signaling) Probe(context.Context) error {
	if !s.Connected() {
		return ErrSignalingDown
	}
	return nil
}

// Run dials and serves the connection until ctx is done.
func (s *Signaling) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		c, err := s.dial(ctx, s.conf, s.handler)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("signaling dial failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, s.maxBackoff)
			continue
		}

		backoff = s.minBackoff
		s.current.Store(c)
		s.logger.Info().Msg("signaling connected")

		err = c.Run(ctx)
		s.current.CompareAndSwap(c, nil)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Msg("signaling connection lost, redialing")
	}
}

var _ ports.SignalingTransport = (*Signaling)(nil)
