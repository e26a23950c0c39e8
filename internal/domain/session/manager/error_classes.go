// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"errors"

	"github.com/ManuGH/rcsshare/internal/domain/session/lifecycle"
)

var (
	ErrConstruction      = lifecycle.ErrConstruction
	ErrSignaling         = lifecycle.ErrSignaling
	ErrSharing           = lifecycle.ErrSharing
	ErrMedia             = lifecycle.ErrMedia
	ErrIllegalTransition = lifecycle.ErrIllegalTransition
	ErrUnknown           = lifecycle.ErrUnknown

	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session already registered")
	ErrRegistryClosed   = errors.New("session registry closed")
	ErrNotRecovered     = errors.New("startup reconciliation has not completed")
)
