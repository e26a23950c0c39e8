// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
)

func TestRecoveryOutcome_Table(t *testing.T) {
	tests := []struct {
		from model.State
		want Outcome
	}{
		{model.StateStarted, Outcome{State: model.StateFailed, Reason: model.ReasonFailedSharing}},
		{model.StateInitiating, Outcome{State: model.StateFailed, Reason: model.ReasonFailedInitiation}},
		{model.StateInvited, Outcome{State: model.StateRejected, Reason: model.ReasonRejectedBySystem}},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			out, ok := RecoveryOutcome(tt.from)
			assert.True(t, ok)
			assert.Equal(t, tt.want, out)
		})
	}

	for _, s := range model.AllStates() {
		if s.IsTerminal() {
			_, ok := RecoveryOutcome(s)
			assert.False(t, ok, "terminal %s must not be recoverable", s)
		}
	}
}

func TestEventFromCause(t *testing.T) {
	t.Run("construction error while initiating", func(t *testing.T) {
		ev := EventFromCause(model.StateInitiating, NewReasonError(model.ReasonFailedInitiation, "bad sdp", nil))
		assert.Equal(t, EvInviteFailed, ev.Kind)
		assert.Equal(t, model.ReasonFailedInitiation, ev.Reason)
	})

	t.Run("media error maps to media failure", func(t *testing.T) {
		err := fmt.Errorf("msrp: %w", NewReasonError(model.ReasonMediaTransferFailed, "", errors.New("broken pipe")))
		ev := EventFromCause(model.StateStarted, err)
		assert.Equal(t, EvMediaFailed, ev.Kind)
	})

	t.Run("remote rejection while invited", func(t *testing.T) {
		ev := EventFromCause(model.StateInvited, NewReasonError(model.ReasonRejectedByRemote, "603 Decline", nil))
		assert.Equal(t, EvRejected, ev.Kind)
		assert.Equal(t, model.ReasonRejectedByRemote, ev.Reason)
	})

	t.Run("timeout while invited", func(t *testing.T) {
		ev := EventFromCause(model.StateInvited, context.DeadlineExceeded)
		assert.Equal(t, EvRejected, ev.Kind)
		assert.Equal(t, model.ReasonRejectedByTimeout, ev.Reason)
	})

	t.Run("anything else is a sharing failure", func(t *testing.T) {
		ev := EventFromCause(model.StateStarted, errors.New("boom"))
		assert.Equal(t, EvSharingFailed, ev.Kind)
		assert.Equal(t, model.ReasonFailedSharing, ev.Reason)
		assert.Equal(t, "boom", ev.Detail)
	})
}
