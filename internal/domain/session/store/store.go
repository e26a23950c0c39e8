// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store persists the durable projection of sharing sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

var (
	ErrNotFound     = errors.New("session record not found")
	ErrInvalidState = errors.New("invalid state/reason pair")
)

// RowFunc receives one record of a scan. Returning an error stops the scan and
// the error is returned by the scan call.
type RowFunc func(rec *model.SessionRecord) error

// StateStore is the persistence boundary for session records, keyed by
// (contact, session id).
type StateStore interface {
	PutSession(ctx context.Context, rec *model.SessionRecord) error
	GetSession(ctx context.Context, contact, id string) (*model.SessionRecord, error)
	// SetStateAndReason updates state and reason of one record.
	SetStateAndReason(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode, now time.Time) error
	// ScanByStates visits every record whose state is in states. The underlying
	// cursor is released before it returns, on every path.
	ScanByStates(ctx context.Context, states []model.State, fn RowFunc) error
	DeleteSession(ctx context.Context, contact, id string) error
	// DeleteTerminalBefore removes terminal records last updated before t.
	DeleteTerminalBefore(ctx context.Context, t time.Time) (int, error)
	Close() error
}

func terminalStates() []model.State {
	var out []model.State
	for _, s := range model.AllStates() {
		if s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

func stateStrings(states []model.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func validatePair(state model.State, reason model.ReasonCode) error {
	if !model.ValidPair(state, reason) {
		return ErrInvalidState
	}
	return nil
}

func s2ms(sec int64) int64 {
	return sec * 1000
}

func ms2s(ms int64) int64 {
	return ms / 1000
}
