// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"context"
	"errors"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

// Outcome is a terminal state paired with its reason.
type Outcome struct {
	State  model.State
	Reason model.ReasonCode
}

// RecoveryOutcome maps a stale non-terminal state to the terminal outcome the
// reconciler writes. Terminal states have no recovery outcome.
func RecoveryOutcome(from model.State) (Outcome, bool) {
	tr, ok := TransitionFor(from, EvRecovered)
	if !ok {
		return Outcome{}, false
	}
	return Outcome{State: tr.To, Reason: tr.Reason}, true
}

// EventFromCause derives the terminating event for an error observed while the
// session is in state from.
func EventFromCause(from model.State, cause error) Event {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	if reason, _, ok := ReasonFromError(cause); ok {
		switch {
		case reason == model.ReasonFailedInitiation && from == model.StateInitiating:
			return Event{Kind: EvInviteFailed, Reason: reason, Detail: detail}
		case reason == model.ReasonMediaTransferFailed:
			return Event{Kind: EvMediaFailed, Reason: reason, Detail: detail}
		case reason.IsRejection() && from == model.StateInvited:
			return Event{Kind: EvRejected, Reason: reason, Detail: detail}
		}
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		switch from {
		case model.StateInitiating:
			return Event{Kind: EvInviteFailed, Reason: model.ReasonFailedInitiation, Detail: detail}
		case model.StateInvited:
			return Event{Kind: EvRejected, Reason: model.ReasonRejectedByTimeout, Detail: detail}
		}
	}
	return Event{Kind: EvSharingFailed, Reason: model.ReasonFailedSharing, Detail: detail}
}
