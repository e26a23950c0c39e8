// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/rcsshare/internal/domain/session/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From   model.State
	To     model.State
	Event  EventKind
	Reason model.ReasonCode
	Detail string
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

var transitionsTable = []Transition{
	// Invitation path
	{From: model.StateInitiating, To: model.StateInvited, Event: EvProvisional, Reason: model.ReasonNone},
	{From: model.StateInitiating, To: model.StateFailed, Event: EvInviteFailed, Reason: model.ReasonFailedInitiation},
	{From: model.StateInvited, To: model.StateStarted, Event: EvAccepted, Reason: model.ReasonNone},
	{From: model.StateInvited, To: model.StateRejected, Event: EvRejected, Reason: model.ReasonRejectedBySystem},

	// Normal close
	{From: model.StateStarted, To: model.StateTerminatedByUser, Event: EvUserClosed, Reason: model.ReasonNone},
	{From: model.StateStarted, To: model.StateTerminatedByRemote, Event: EvRemoteBye, Reason: model.ReasonNone},
	{From: model.StateStarted, To: model.StateTerminatedBySystem, Event: EvSystemClosed, Reason: model.ReasonNone},

	// Errors
	{From: model.StateInitiating, To: model.StateFailed, Event: EvSharingFailed, Reason: model.ReasonFailedSharing},
	{From: model.StateInvited, To: model.StateFailed, Event: EvSharingFailed, Reason: model.ReasonFailedSharing},
	{From: model.StateStarted, To: model.StateFailed, Event: EvSharingFailed, Reason: model.ReasonFailedSharing},
	{From: model.StateInitiating, To: model.StateFailed, Event: EvMediaFailed, Reason: model.ReasonMediaTransferFailed},
	{From: model.StateInvited, To: model.StateFailed, Event: EvMediaFailed, Reason: model.ReasonMediaTransferFailed},
	{From: model.StateStarted, To: model.StateFailed, Event: EvMediaFailed, Reason: model.ReasonMediaTransferFailed},

	// Post-restart reconciliation
	{From: model.StateStarted, To: model.StateFailed, Event: EvRecovered, Reason: model.ReasonFailedSharing},
	{From: model.StateInitiating, To: model.StateFailed, Event: EvRecovered, Reason: model.ReasonFailedInitiation},
	{From: model.StateInvited, To: model.StateRejected, Event: EvRecovered, Reason: model.ReasonRejectedBySystem},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
