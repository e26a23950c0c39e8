// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

// Dispatch resolves the next transition from the tables and applies it to rec.
// A forbidden event leaves rec untouched and returns ErrIllegalTransition.
func Dispatch(rec *model.SessionRecord, ev Event, now time.Time) (Transition, error) {
	if rec.State.IsTerminal() {
		return illegalTransition(rec.State, ev.Kind, ForbiddenTerminalAbsorbing)
	}

	decision, ok := DecisionFor(rec.State, ev.Kind)
	if !ok {
		return illegalTransition(rec.State, ev.Kind, ForbiddenOutOfOrder)
	}
	if !decision.Allowed {
		return illegalTransition(rec.State, ev.Kind, decision.Reason)
	}
	tr, ok := TransitionFor(rec.State, ev.Kind)
	if !ok {
		return illegalTransition(rec.State, ev.Kind, ForbiddenOutOfOrder)
	}

	if ev.Reason != "" && ev.Reason != tr.Reason && model.ValidPair(tr.To, ev.Reason) {
		tr.Reason = ev.Reason
	}
	tr.Detail = sanitizeDetail(ev.Detail)

	ApplyTransition(rec, tr, now)
	return tr, nil
}

// ApplyTransition mutates the session record according to the transition.
func ApplyTransition(rec *model.SessionRecord, tr Transition, now time.Time) {
	rec.State = tr.To
	rec.Reason = tr.Reason
	if rec.Reason == "" {
		rec.Reason = model.ReasonNone
	}
	rec.UpdatedAtUnix = now.Unix()
}
