// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"

	"github.com/emiago/sipgo/sip"
)

// SignalingTransport sends on the signaling connection. Responses and BYE
// from the remote arrive as calls on the session.
type SignalingTransport interface {
	Send(ctx context.Context, req *sip.Request) error
	// Respond sends a final response to a request received earlier.
	Respond(ctx context.Context, res *sip.Response) error
}

// MediaChannel is the media-transport channel of an established session.
// Close must be idempotent.
type MediaChannel interface {
	Close() error
}

// CapabilityRequester refreshes what a remote contact supports. Calls must not
// block the caller.
type CapabilityRequester interface {
	RequestCapabilities(contact string)
}
