// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

var (
	ErrConstruction      = errors.New("invitation construction failed")
	ErrSignaling         = errors.New("signaling rejected")
	ErrSharing           = errors.New("sharing failed")
	ErrMedia             = errors.New("media transfer failed")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrUnknown           = errors.New("unknown session error")
)

// ReasonErrorClass maps a reason code to its error class sentinel.
func ReasonErrorClass(reason model.ReasonCode) error {
	switch {
	case reason == model.ReasonNone || reason == "":
		return nil
	case reason == model.ReasonFailedInitiation:
		return ErrConstruction
	case reason == model.ReasonFailedSharing:
		return ErrSharing
	case reason == model.ReasonMediaTransferFailed:
		return ErrMedia
	case reason.IsRejection():
		return ErrSignaling
	default:
		return ErrUnknown
	}
}
