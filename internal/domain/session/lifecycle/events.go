// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/rcsshare/internal/domain/session/model"

// EventKind is a domain event in the session lifecycle.
type EventKind int

const (
	EvUnknown      EventKind = iota
	EvProvisional            // invite sent, provisional response received
	EvInviteFailed           // invite could not be built or sent
	EvAccepted               // remote acceptance, media channel established
	EvRejected               // remote decline or local auto-reject
	EvUserClosed
	EvRemoteBye
	EvSystemClosed
	EvSharingFailed // signaling or generic sharing error
	EvMediaFailed   // media channel failed mid-transfer
	EvRecovered     // post-restart reconciliation of a stale record
)

var eventNames = map[EventKind]string{
	EvUnknown:       "unknown",
	EvProvisional:   "provisional",
	EvInviteFailed:  "invite_failed",
	EvAccepted:      "accepted",
	EvRejected:      "rejected",
	EvUserClosed:    "user_closed",
	EvRemoteBye:     "remote_bye",
	EvSystemClosed:  "system_closed",
	EvSharingFailed: "sharing_failed",
	EvMediaFailed:   "media_failed",
	EvRecovered:     "recovered",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// AllEvents lists every dispatchable event kind.
func AllEvents() []EventKind {
	return []EventKind{
		EvProvisional, EvInviteFailed, EvAccepted, EvRejected,
		EvUserClosed, EvRemoteBye, EvSystemClosed,
		EvSharingFailed, EvMediaFailed, EvRecovered,
	}
}

// Event carries optional domain metadata for a transition.
// Reason overrides the table default when it forms a valid pair with the target state.
type Event struct {
	Kind   EventKind
	Reason model.ReasonCode
	Detail string
}
