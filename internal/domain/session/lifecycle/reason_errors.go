// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"strings"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

type reasonError struct {
	reason model.ReasonCode
	detail string
	err    error
}

func (e *reasonError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.detail != "" {
		return string(e.reason) + ": " + e.detail
	}
	return string(e.reason)
}

func (e *reasonError) Is(target error) bool {
	if target == nil {
		return false
	}
	class := ReasonErrorClass(e.reason)
	return class != nil && target == class
}

func (e *reasonError) Unwrap() error {
	return e.err
}

// NewReasonError attaches a reason code to err.
func NewReasonError(reason model.ReasonCode, detail string, err error) error {
	return &reasonError{
		reason: reason,
		detail: detail,
		err:    err,
	}
}

// WrapWithReasonClass classifies err unless it already carries a reason.
func WrapWithReasonClass(err error) error {
	if err == nil {
		return nil
	}
	var rerr *reasonError
	if errors.As(err, &rerr) {
		return err
	}
	reason, detail := ClassifyReason(err)
	return NewReasonError(reason, detail, err)
}

// ClassifyReason returns the reason code for err, defaulting to FAILED_SHARING.
func ClassifyReason(err error) (model.ReasonCode, string) {
	if err == nil {
		return model.ReasonNone, ""
	}
	if reason, detail, ok := ReasonFromError(err); ok {
		return reason, sanitizeDetail(detail)
	}
	return model.ReasonFailedSharing, sanitizeDetail(err.Error())
}

// ReasonFromError extracts the reason carried by err.
func ReasonFromError(err error) (model.ReasonCode, string, bool) {
	var rerr *reasonError
	if errors.As(err, &rerr) {
		detail := rerr.detail
		if detail == "" && rerr.err != nil {
			detail = rerr.err.Error()
		}
		return rerr.reason, detail, true
	}
	return "", "", false
}

func sanitizeDetail(detail string) string {
	if detail == "" {
		return ""
	}
	const maxLen = 160
	clean := strings.ReplaceAll(detail, "\n", " ")
	if len(clean) > maxLen {
		return clean[:maxLen] + "..."
	}
	return clean
}
