// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "net/url"

// Content describes the shared payload.
type Content struct {
	Name     string `json:"name" validate:"required,max=255"`
	MimeType string `json:"mimeType" validate:"required,contains=/"`
	Size     int64  `json:"size" validate:"gte=0"`
	URI      string `json:"uri,omitempty" validate:"omitempty,uri"`
}

// IsNetworkRetrievable reports whether the source URI can be fetched by the
// remote over the network (http or https).
func (c Content) IsNetworkRetrievable() bool {
	if c.URI == "" {
		return false
	}
	u, err := url.Parse(c.URI)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}

// SessionRecord is the durable projection of a sharing session.
type SessionRecord struct {
	SessionID     string     `json:"sessionId"`
	Contact       string     `json:"contact"`
	Medium        Medium     `json:"medium"`
	Direction     Direction  `json:"direction"`
	State         State      `json:"state"`
	Reason        ReasonCode `json:"reason"`
	Content       Content    `json:"content"`
	CreatedAtUnix int64      `json:"createdAtUnix"`
	UpdatedAtUnix int64      `json:"updatedAtUnix"`
}

// Key returns the (contact, identity) pair the store is keyed by.
func (r *SessionRecord) Key() RecordKey {
	return RecordKey{Contact: r.Contact, SessionID: r.SessionID}
}

// RecordKey identifies a persisted record.
type RecordKey struct {
	Contact   string
	SessionID string
}
