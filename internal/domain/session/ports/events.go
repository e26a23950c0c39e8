// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

// Event is a lifecycle notification delivered to session listeners.
// The set of implementations is closed: StateChanged, TransferError, Progress.
type Event interface {
	SessionID() string
	isEvent()
}

// StateChanged reports an applied transition.
type StateChanged struct {
	Session string
	Contact string
	From    model.State
	To      model.State
	Reason  model.ReasonCode
	At      time.Time
}

// TransferError reports the single terminal error of a session.
type TransferError struct {
	Session   string
	Contact   string
	MsgID     string
	ChunkType string
	Reason    model.ReasonCode
	Err       error
}

// Progress reports media transfer progress.
type Progress struct {
	Session string
	Current int64
	Total   int64
}

func (e StateChanged) SessionID() string  { return e.Session }
func (e TransferError) SessionID() string { return e.Session }
func (e Progress) SessionID() string      { return e.Session }

func (StateChanged) isEvent()  {}
func (TransferError) isEvent() {}
func (Progress) isEvent()      {}

// Listener observes the events of one session.
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }
