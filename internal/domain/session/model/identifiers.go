// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var sessionIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsSafeSessionID returns true if the ID is safe for store keys and URLs.
func IsSafeSessionID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// NewSessionID returns a fresh opaque session identity.
func NewSessionID() string {
	return uuid.NewString()
}

// NewContributionID returns a correlation id for the Contribution-ID header.
func NewContributionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
