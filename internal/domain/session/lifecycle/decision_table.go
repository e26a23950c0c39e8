// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/rcsshare/internal/domain/session/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyInState    = "already_in_state"
	ForbiddenRequiresInvite    = "requires_invite"
	ForbiddenRequiresStarted   = "requires_started"
)

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

func terminalRow() map[EventKind]Decision {
	row := make(map[EventKind]Decision, len(AllEvents()))
	for _, ev := range AllEvents() {
		row[ev] = forbid(ForbiddenTerminalAbsorbing)
	}
	return row
}

// decisionTable defines an explicit decision for every State×Event combination.
var decisionTable = map[model.State]map[EventKind]Decision{
	model.StateInitiating: {
		EvProvisional:   allowed(),
		EvInviteFailed:  allowed(),
		EvAccepted:      forbid(ForbiddenRequiresInvite),
		EvRejected:      forbid(ForbiddenRequiresInvite),
		EvUserClosed:    forbid(ForbiddenRequiresStarted),
		EvRemoteBye:     forbid(ForbiddenRequiresStarted),
		EvSystemClosed:  forbid(ForbiddenRequiresStarted),
		EvSharingFailed: allowed(),
		EvMediaFailed:   allowed(),
		EvRecovered:     allowed(),
	},
	model.StateInvited: {
		EvProvisional:   forbid(ForbiddenAlreadyInState),
		EvInviteFailed:  forbid(ForbiddenOutOfOrder),
		EvAccepted:      allowed(),
		EvRejected:      allowed(),
		EvUserClosed:    forbid(ForbiddenRequiresStarted),
		EvRemoteBye:     forbid(ForbiddenRequiresStarted),
		EvSystemClosed:  forbid(ForbiddenRequiresStarted),
		EvSharingFailed: allowed(),
		EvMediaFailed:   allowed(),
		EvRecovered:     allowed(),
	},
	model.StateStarted: {
		EvProvisional:   forbid(ForbiddenOutOfOrder),
		EvInviteFailed:  forbid(ForbiddenOutOfOrder),
		EvAccepted:      forbid(ForbiddenAlreadyInState),
		EvRejected:      forbid(ForbiddenOutOfOrder),
		EvUserClosed:    allowed(),
		EvRemoteBye:     allowed(),
		EvSystemClosed:  allowed(),
		EvSharingFailed: allowed(),
		EvMediaFailed:   allowed(),
		EvRecovered:     allowed(),
	},
	model.StateTerminatedByUser:   terminalRow(),
	model.StateTerminatedByRemote: terminalRow(),
	model.StateTerminatedBySystem: terminalRow(),
	model.StateRejected:           terminalRow(),
	model.StateFailed:             terminalRow(),
}

// DecisionFor returns the explicit decision for a state+event.
func DecisionFor(from model.State, ev EventKind) (Decision, bool) {
	row, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := row[ev]
	return d, ok
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.State, ev EventKind) string {
	decision, ok := DecisionFor(from, ev)
	if !ok || decision.Allowed {
		return ""
	}
	return decision.Reason
}
