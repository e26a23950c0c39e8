// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_IsTerminal(t *testing.T) {
	for _, s := range NonTerminalStates() {
		assert.False(t, s.IsTerminal(), "%s", s)
	}
	terminal := 0
	for _, s := range AllStates() {
		if s.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 5, terminal)
	assert.False(t, State("BOGUS").IsValid())
}

func TestValidPair(t *testing.T) {
	tests := []struct {
		state  State
		reason ReasonCode
		want   bool
	}{
		{StateStarted, ReasonNone, true},
		{StateStarted, "", true},
		{StateInvited, ReasonFailedSharing, false},
		{StateFailed, ReasonFailedSharing, true},
		{StateFailed, ReasonMediaTransferFailed, true},
		{StateFailed, ReasonRejectedBySystem, false},
		{StateRejected, ReasonRejectedBySystem, true},
		{StateRejected, ReasonRejectedByTimeout, true},
		{StateRejected, ReasonFailedInitiation, false},
		{StateTerminatedByRemote, ReasonNone, true},
		{StateTerminatedByUser, ReasonFailedSharing, false},
		{State("X"), ReasonNone, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPair(tt.state, tt.reason), "%s/%s", tt.state, tt.reason)
	}
}

func TestIdentifiers(t *testing.T) {
	id := NewSessionID()
	assert.True(t, IsSafeSessionID(id))
	assert.False(t, IsSafeSessionID("../etc"))
	assert.False(t, IsSafeSessionID(""))
	assert.Len(t, NewContributionID(), 32)
}
