// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
)

const defaultPublishTimeout = 250 * time.Millisecond

// Message is the bus payload for a session event.
type Message struct {
	Topic   string      `json:"topic"`
	Session string      `json:"session"`
	At      time.Time   `json:"at"`
	Event   interface{} `json:"event"`
}

// Mirror is a session listener that republishes events on a bus. Session
// listeners run synchronously, so each publish is bounded by Timeout.
type Mirror struct {
	Bus     ports.Bus
	Timeout time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (m *Mirror) OnEvent(ev ports.Event) {
	topic, payload := topicFor(ev)
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	msg := Message{Topic: topic, Session: ev.SessionID(), At: now(), Event: payload}
	if err := m.Bus.Publish(ctx, topic, msg); err != nil {
		m.Logger.Debug().Err(err).Str("topic", topic).Msg("mirror session event")
	}
}

// transferErrorPayload carries the error text; error values do not encode.
type transferErrorPayload struct {
	Contact   string `json:"contact"`
	MsgID     string `json:"msgId,omitempty"`
	ChunkType string `json:"chunkType,omitempty"`
	Reason    string `json:"reason"`
	Error     string `json:"error,omitempty"`
}

func topicFor(ev ports.Event) (string, interface{}) {
	switch e := ev.(type) {
	case ports.StateChanged:
		return TopicSessionState, e
	case ports.TransferError:
		p := transferErrorPayload{
			Contact:   e.Contact,
			MsgID:     e.MsgID,
			ChunkType: e.ChunkType,
			Reason:    string(e.Reason),
		}
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
		return TopicSessionError, p
	default:
		return TopicProgress, ev
	}
}
