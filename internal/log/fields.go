// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldContact   = "contact"
	FieldCallID    = "call_id"
	FieldMsgID     = "msg_id"
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldMedium    = "medium"
	FieldBackend   = "backend"

	// State fields
	FieldFromState = "from_state"
	FieldToState   = "to_state"
	FieldReason    = "reason"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
