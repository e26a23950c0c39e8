// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// State is the lifecycle state of a sharing session.
// Values are persisted verbatim; keep them stable.
type State string

const (
	StateInitiating         State = "INITIATING"
	StateInvited            State = "INVITED"
	StateStarted            State = "STARTED"
	StateTerminatedByUser   State = "TERMINATED_BY_USER"
	StateTerminatedByRemote State = "TERMINATED_BY_REMOTE"
	StateTerminatedBySystem State = "TERMINATED_BY_SYSTEM"
	StateRejected           State = "REJECTED"
	StateFailed             State = "FAILED"
)

// IsTerminal returns true if the state is a final state.
func (s State) IsTerminal() bool {
	switch s {
	case StateTerminatedByUser, StateTerminatedByRemote, StateTerminatedBySystem,
		StateRejected, StateFailed:
		return true
	}
	return false
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StateInitiating, StateInvited, StateStarted:
		return true
	}
	return s.IsTerminal()
}

// NonTerminalStates lists the states that imply an unfinished protocol exchange.
func NonTerminalStates() []State {
	return []State{StateStarted, StateInvited, StateInitiating}
}

// AllStates lists every state, non-terminal first.
func AllStates() []State {
	return []State{
		StateInitiating, StateInvited, StateStarted,
		StateTerminatedByUser, StateTerminatedByRemote, StateTerminatedBySystem,
		StateRejected, StateFailed,
	}
}

// ReasonCode explains why a terminal state was reached.
type ReasonCode string

const (
	ReasonNone                ReasonCode = "NONE"
	ReasonFailedInitiation    ReasonCode = "FAILED_INITIATION"
	ReasonFailedSharing       ReasonCode = "FAILED_SHARING"
	ReasonMediaTransferFailed ReasonCode = "MEDIA_TRANSFER_FAILED"
	ReasonRejectedBySystem    ReasonCode = "REJECTED_BY_SYSTEM"
	ReasonRejectedByRemote    ReasonCode = "REJECTED_BY_REMOTE"
	ReasonRejectedByUser      ReasonCode = "REJECTED_BY_USER"
	ReasonRejectedByTimeout   ReasonCode = "REJECTED_BY_TIMEOUT"
	ReasonRejectedLowSpace    ReasonCode = "REJECTED_LOW_SPACE"
	ReasonRejectedMaxSize     ReasonCode = "REJECTED_MAX_SIZE"
	ReasonRejectedMediaFailed ReasonCode = "REJECTED_MEDIA_FAILED"
	ReasonRejectedSpam        ReasonCode = "REJECTED_SPAM"
)

// IsRejection reports whether r may accompany the REJECTED state.
func (r ReasonCode) IsRejection() bool {
	switch r {
	case ReasonRejectedBySystem, ReasonRejectedByRemote, ReasonRejectedByUser,
		ReasonRejectedByTimeout, ReasonRejectedLowSpace, ReasonRejectedMaxSize,
		ReasonRejectedMediaFailed, ReasonRejectedSpam:
		return true
	}
	return false
}

// IsFailure reports whether r may accompany the FAILED state.
func (r ReasonCode) IsFailure() bool {
	switch r {
	case ReasonFailedInitiation, ReasonFailedSharing, ReasonMediaTransferFailed:
		return true
	}
	return false
}

// ValidPair reports whether a state/reason combination may be persisted.
// Non-terminal states never carry a reason.
func ValidPair(s State, r ReasonCode) bool {
	if r == "" {
		r = ReasonNone
	}
	switch {
	case !s.IsValid():
		return false
	case !s.IsTerminal():
		return r == ReasonNone
	case s == StateFailed:
		return r.IsFailure()
	case s == StateRejected:
		return r.IsRejection()
	default:
		return r == ReasonNone
	}
}

// Medium identifies the kind of content a session carries.
type Medium string

const (
	MediumFileTransfer   Medium = "file-transfer"
	MediumImageSharing   Medium = "image-sharing"
	MediumVideoStreaming Medium = "video-streaming"
)

// Direction of the session relative to this device.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)
