// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/domain/session/lifecycle"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
	"github.com/ManuGH/rcsshare/internal/log"
)

// StateSetter writes a terminal outcome for one record.
type StateSetter interface {
	SetStateAndReasonCode(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode) error
}

// Report summarises one reconciliation pass.
type Report struct {
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"durationNs"`
	Scanned    int           `json:"scanned"`
	Recovered  int           `json:"recovered"`
	Failed     int           `json:"failed"`
	Aborted    bool          `json:"aborted"`
	Error      string        `json:"error,omitempty"`
	Records    []ReportEntry `json:"records,omitempty"`
}

// ReportEntry is the outcome for one stale record.
type ReportEntry struct {
	SessionID string           `json:"sessionId"`
	Contact   string           `json:"contact"`
	From      model.State      `json:"from"`
	To        model.State      `json:"to"`
	Reason    model.ReasonCode `json:"reason"`
	Error     string           `json:"error,omitempty"`
}

// Reconciler moves records that were non-terminal when the previous process
// died to their terminal recovery outcome. It runs at most once per process.
//
// A record that cannot be updated is logged and skipped; the pass goes on with
// the next one. A failing scan aborts the pass.
type Reconciler struct {
	store      store.StateStore
	setter     StateSetter
	logger     zerolog.Logger
	reportPath string

	once   sync.Once
	report Report
	err    error
}

func NewReconciler(st store.StateStore, setter StateSetter, logger zerolog.Logger, reportPath string) *Reconciler {
	return &Reconciler{
		store:      st,
		setter:     setter,
		logger:     logger.With().Str(log.FieldComponent, "session.recovery").Logger(),
		reportPath: reportPath,
	}
}

// Run performs the pass on first call. Later calls return the same result.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	r.once.Do(func() {
		r.report, r.err = r.pass(ctx)
	})
	return r.report, r.err
}

func (r *Reconciler) pass(ctx context.Context) (Report, error) {
	rep := Report{StartedAt: time.Now()}
	defer func() {
		rep.FinishedAt = time.Now()
		rep.Duration = rep.FinishedAt.Sub(rep.StartedAt)
		recoveryDuration.Observe(rep.Duration.Seconds())
	}()

	// Phase 1: collect. The store releases its cursor before ScanByStates returns.
	var stale []model.SessionRecord
	err := r.store.ScanByStates(ctx, model.NonTerminalStates(), func(rec *model.SessionRecord) error {
		stale = append(stale, *rec)
		return nil
	})
	if err != nil {
		rep.Aborted = true
		rep.Error = err.Error()
		recoveryRunsTotal.WithLabelValues("aborted").Inc()
		r.logger.Error().Err(err).Msg("recovery scan failed")
		r.writeReport(&rep)
		return rep, fmt.Errorf("scan stale sessions: %w", err)
	}
	rep.Scanned = len(stale)

	// Phase 2: apply. A row update is never cut short by ctx; the pass stops
	// between rows once ctx is done.
	for _, rec := range stale {
		if ctx.Err() != nil {
			rep.Aborted = true
			rep.Error = ctx.Err().Error()
			break
		}
		out, ok := lifecycle.RecoveryOutcome(rec.State)
		if !ok {
			continue
		}
		entry := ReportEntry{
			SessionID: rec.SessionID,
			Contact:   rec.Contact,
			From:      rec.State,
			To:        out.State,
			Reason:    out.Reason,
		}
		if err := r.setter.SetStateAndReasonCode(context.WithoutCancel(ctx), rec.Contact, rec.SessionID, out.State, out.Reason); err != nil {
			rep.Failed++
			entry.Error = err.Error()
			recoveryRecordsTotal.WithLabelValues("failed", string(rec.State)).Inc()
			r.logger.Warn().
				Err(err).
				Str(log.FieldSessionID, rec.SessionID).
				Str(log.FieldFromState, string(rec.State)).
				Msg("recover session failed, continuing")
		} else {
			rep.Recovered++
			recoveryRecordsTotal.WithLabelValues("recovered", string(rec.State)).Inc()
			r.logger.Info().
				Str(log.FieldSessionID, rec.SessionID).
				Str(log.FieldFromState, string(rec.State)).
				Str(log.FieldToState, string(out.State)).
				Str(log.FieldReason, string(out.Reason)).
				Msg("recovered stale session")
		}
		rep.Records = append(rep.Records, entry)
	}

	result := "success"
	switch {
	case rep.Aborted:
		result = "aborted"
	case rep.Failed > 0:
		result = "partial"
	}
	recoveryRunsTotal.WithLabelValues(result).Inc()
	r.logger.Info().
		Int("scanned", rep.Scanned).
		Int("recovered_count", rep.Recovered).
		Int("failed_count", rep.Failed).
		Dur("duration", time.Since(rep.StartedAt)).
		Msg("recovery pass complete")

	r.writeReport(&rep)
	if rep.Aborted {
		return rep, fmt.Errorf("recovery pass abandoned: %w", ctx.Err())
	}
	return rep, nil
}

// writeReport stores rep atomically at the configured path.
func (r *Reconciler) writeReport(rep *Report) {
	if r.reportPath == "" {
		return
	}
	if err := writeReportFile(r.reportPath, rep); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldPath, r.reportPath).Msg("write recovery report")
	}
}

func writeReportFile(path string, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recovery report: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		_ = pendingFile.Cleanup()
	}()
	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write recovery report: %w", err)
	}
	// fsync + rename
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace recovery report: %w", err)
	}
	return nil
}
