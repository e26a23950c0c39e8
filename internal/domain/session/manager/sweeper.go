// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/lifecycle"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/log"
)

const defaultOrphanGrace = time.Minute

// SweeperConfig defines retention policies.
type SweeperConfig struct {
	Interval         time.Duration
	SessionRetention time.Duration // how long terminal records are kept
	// OrphanGrace is the minimum age of a non-terminal record with no live
	// session before it is finalized.
	OrphanGrace time.Duration
}

// Sweeper performs background cleanup of the session store.
type Sweeper struct {
	Svc  *Service
	Conf SweeperConfig
}

// Run starts the sweeper loop. It periodically calls SweepOnce on a ticker.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Conf.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.Conf.Interval)
	defer ticker.Stop()

	log.L().Info().Dur("interval", s.Conf.Interval).Msg("background sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs exactly one pass: orphan finalization, then retention.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	if !s.Svc.Recovered() {
		return
	}
	s.finalizeOrphans(ctx)
	s.sweepRetention(ctx)
}

// finalizeOrphans applies the recovery outcome to non-terminal records that
// have no live session, e.g. rows the startup reconciler could not update.
func (s *Sweeper) finalizeOrphans(ctx context.Context) {
	grace := s.Conf.OrphanGrace
	if grace <= 0 {
		grace = defaultOrphanGrace
	}
	now := s.Svc.now()

	var orphans []model.SessionRecord
	err := s.Svc.store.ScanByStates(ctx, model.NonTerminalStates(), func(r *model.SessionRecord) error {
		updatedAt := r.UpdatedAtUnix
		if updatedAt == 0 {
			updatedAt = r.CreatedAtUnix
		}
		if now.Sub(time.Unix(updatedAt, 0)) < grace {
			return nil
		}
		if _, live := s.Svc.registry.Get(r.SessionID); live {
			return nil
		}
		orphans = append(orphans, *r)
		return nil
	})
	if err != nil {
		log.L().Warn().Err(err).Msg("orphan scan failed")
		return
	}

	for _, r := range orphans {
		out, ok := lifecycle.RecoveryOutcome(r.State)
		if !ok {
			continue
		}
		if err := s.Svc.SetStateAndReasonCode(ctx, r.Contact, r.SessionID, out.State, out.Reason); err != nil {
			log.L().Warn().Err(err).Str(log.FieldSessionID, r.SessionID).Msg("finalize orphan session")
			continue
		}
		recoveryRecordsTotal.WithLabelValues("swept", string(r.State)).Inc()
		log.L().Info().
			Str(log.FieldSessionID, r.SessionID).
			Str(log.FieldFromState, string(r.State)).
			Str(log.FieldToState, string(out.State)).
			Msg("finalized orphan session")
	}
}

func (s *Sweeper) sweepRetention(ctx context.Context) {
	if s.Conf.SessionRetention <= 0 {
		return
	}
	cutoff := s.Svc.now().Add(-s.Conf.SessionRetention)
	n, err := s.Svc.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		log.L().Warn().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		sweptTotal.Add(float64(n))
		log.L().Info().Int("deleted", n).Time("cutoff", cutoff).Msg("retention sweep removed terminal sessions")
	}
}
