// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sharing implements the per-medium parts of a sharing session:
// offer bodies, negotiated attributes and medium-specific teardown.
package sharing

import (
	"errors"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

var (
	ErrNoMedia       = errors.New("answer carries no matching media")
	ErrInvalidAnswer = errors.New("invalid session description answer")
)

// Medium is the capability a session is parameterised over.
type Medium interface {
	Kind() model.Medium
	// FeatureTag is the Accept-Contact value routing the invite to the right service.
	FeatureTag() string
	// InviteBody builds the offer for p. Attachments switch the invite to multipart.
	InviteBody(p *dialog.Path) (dialog.Body, error)
	// OnAnswer applies negotiated attributes from the far-end answer.
	OnAnswer(answer []byte) error
	// Attributes exposes the per-medium descriptors for logging and listeners.
	Attributes() map[string]string
	// CapabilityRefreshOnError reports whether a generic error also refreshes
	// the remote's capabilities.
	CapabilityRefreshOnError() bool
	// Teardown releases medium-specific resources once the media channel is closed.
	Teardown() error
}

// Answerer is implemented by media that can answer a received offer. Media
// without it answer with their offer body.
type Answerer interface {
	AnswerBody(p *dialog.Path) ([]byte, error)
}

// Endpoint is the local media address advertised in offers.
type Endpoint struct {
	Host string
	Port int
}
