// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Session attributes
	SessionIDKey      = "session.id"
	SessionContactKey = "session.contact"
	SessionMediumKey  = "session.medium"

	// Transition attributes
	StateFromKey = "session.state_from"
	StateToKey   = "session.state_to"
	ReasonKey    = "session.reason"

	// Recovery attributes
	RecoveryScannedKey   = "recovery.scanned"
	RecoveryRecoveredKey = "recovery.recovered"
	RecoveryFailedKey    = "recovery.failed"
)

// SessionAttributes identifies a sharing session on a span.
func SessionAttributes(id, contact, medium string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SessionIDKey, id),
		attribute.String(SessionMediumKey, medium),
	}
	if contact != "" {
		attrs = append(attrs, attribute.String(SessionContactKey, contact))
	}
	return attrs
}

// TransitionAttributes describes an applied state change.
func TransitionAttributes(from, to, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StateFromKey, from),
		attribute.String(StateToKey, to),
		attribute.String(ReasonKey, reason),
	}
}

// RecoveryAttributes summarises a reconciliation pass.
func RecoveryAttributes(scanned, recovered, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RecoveryScannedKey, scanned),
		attribute.Int(RecoveryRecoveredKey, recovered),
		attribute.Int(RecoveryFailedKey, failed),
	}
}
