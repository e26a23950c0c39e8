// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dialog holds the signaling-side descriptor of one sharing exchange
// and builds its outbound requests.
package dialog

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
)

var (
	ErrEmptyContent      = errors.New("empty session description")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidAttachment = errors.New("invalid attachment")
	ErrContentFixed      = errors.New("content already negotiated")
)

// Path describes one signaling exchange. Addressing is fixed at construction;
// local and remote content are each set once. The terminated flag is monotonic.
type Path struct {
	CallID         string
	ContributionID string
	FeatureTag     string
	Local          sip.Uri
	Remote         sip.Uri
	LocalTag       string

	mu            sync.RWMutex
	remoteTag     string
	localContent  []byte
	remoteContent []byte

	cseq       atomic.Uint32
	terminated atomic.Bool
}

// NewPath creates a path between local and remote with fresh Call-ID and tag.
func NewPath(local, remote sip.Uri, contributionID, featureTag string) *Path {
	return &Path{
		CallID:         uuid.NewString(),
		ContributionID: contributionID,
		FeatureTag:     featureTag,
		Local:          local,
		Remote:         remote,
		LocalTag:       strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
	}
}

// ContactURI turns a contact ("sip:", "sips:" or "tel:" form) into a request URI.
// Telephone numbers are routed through domain.
func ContactURI(contact, domain string) (sip.Uri, error) {
	contact = strings.TrimSpace(contact)
	lower := strings.ToLower(contact)
	switch {
	case strings.HasPrefix(lower, "sip:") || strings.HasPrefix(lower, "sips:"):
		var u sip.Uri
		if err := sip.ParseUri(contact, &u); err != nil {
			return sip.Uri{}, &SignalingError{Op: "parse contact", Err: errors.Join(ErrInvalidAddress, err)}
		}
		return u, nil
	case strings.HasPrefix(lower, "tel:"):
		number := strings.TrimSpace(contact[len("tel:"):])
		if number == "" || domain == "" {
			return sip.Uri{}, &SignalingError{Op: "parse contact", Err: ErrInvalidAddress}
		}
		return sip.Uri{Scheme: "sip", User: number, Host: domain}, nil
	default:
		return sip.Uri{}, &SignalingError{Op: "parse contact", Err: ErrInvalidAddress}
	}
}

// SetLocalContent records the offer body. It may only be set once.
func (p *Path) SetLocalContent(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.localContent != nil {
		return ErrContentFixed
	}
	p.localContent = append([]byte(nil), b...)
	return nil
}

// LocalContent returns a copy of the offer body.
func (p *Path) LocalContent() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.localContent...)
}

// Establish records the far-end answer and tag. It may only be called once.
func (p *Path) Establish(remoteTag string, answer []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteContent != nil {
		return ErrContentFixed
	}
	p.remoteTag = remoteTag
	p.remoteContent = append([]byte{}, answer...)
	return nil
}

// RemoteContent returns a copy of the answer body.
func (p *Path) RemoteContent() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.remoteContent...)
}

// RemoteTag returns the far-end dialog tag, empty before Establish.
func (p *Path) RemoteTag() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteTag
}

// Terminate marks the dialog terminated and reports whether this call did it.
func (p *Path) Terminate() bool {
	return p.terminated.CompareAndSwap(false, true)
}

// IsTerminated reports whether the dialog has been terminated.
func (p *Path) IsTerminated() bool {
	return p.terminated.Load()
}

func (p *Path) nextCSeq() uint32 {
	return p.cseq.Add(1)
}
