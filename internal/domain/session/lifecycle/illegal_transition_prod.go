// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package lifecycle

import (
	"fmt"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

func illegalTransition(from model.State, ev EventKind, why string) (Transition, error) {
	return Transition{From: from, To: from, Event: ev}, fmt.Errorf("%w: %s + %s (%s)", ErrIllegalTransition, from, ev, why)
}
