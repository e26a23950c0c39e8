// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
)

func sentInvite(t *testing.T, h *harness) *sip.Request {
	t.Helper()
	h.tx.mu.Lock()
	defer h.tx.mu.Unlock()
	for _, r := range h.tx.sent {
		if r.Method == sip.INVITE {
			return r
		}
	}
	t.Fatal("no INVITE sent")
	return nil
}

func responseTo(req *sip.Request, code int, reason string, body []byte) *sip.Response {
	res := sip.NewResponseFromRequest(req, code, reason, body)
	if to := res.To(); to != nil {
		if to.Params == nil {
			to.Params = sip.HeaderParams{}
		}
		to.Params["tag"] = "remote-tag"
	}
	return res
}

func TestDispatcherDrivesOutgoingSession(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	ctx := context.Background()
	sess, rec := h.outgoing(t, &stubMedium{})
	require.NoError(t, sess.Start(ctx))
	invite := sentInvite(t, h)

	media := &fakeMedia{}
	d := &Dispatcher{Svc: h.svc, OpenMedia: func(context.Context, *Session, []byte) (ports.MediaChannel, error) { return media, nil }}

	d.HandleResponse(ctx, responseTo(invite, 100, "Trying", nil))
	st, _ := sess.State()
	assert.Equal(t, model.StateInitiating, st)

	d.HandleResponse(ctx, responseTo(invite, 180, "Ringing", nil))
	st, _ = sess.State()
	assert.Equal(t, model.StateInvited, st)

	d.HandleResponse(ctx, responseTo(invite, 200, "OK", []byte(testAnswer)))
	st, _ = sess.State()
	assert.Equal(t, model.StateStarted, st)
	assert.Equal(t, "remote-tag", sess.Path().RemoteTag())

	bye := d.HandleRequest(ctx, byeFor(t, sess))
	require.NotNil(t, bye)
	assert.Equal(t, 200, int(bye.StatusCode))

	st, _ = sess.State()
	assert.Equal(t, model.StateTerminatedByRemote, st)
	assert.Equal(t, 1, media.closeCount())
	assert.Len(t, rec.stateChanges(), 3)
}

func TestDispatcherMapsRejectionStatus(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	ctx := context.Background()
	sess, _ := h.outgoing(t, &stubMedium{})
	require.NoError(t, sess.Start(ctx))

	d := &Dispatcher{Svc: h.svc}
	d.HandleResponse(ctx, responseTo(sentInvite(t, h), 486, "Busy Here", nil))

	st, reason := sess.State()
	assert.Equal(t, model.StateRejected, st)
	assert.Equal(t, model.ReasonRejectedByRemote, reason)
	assert.Equal(t, model.StateRejected, h.persisted(t, sess).State)
}

func TestDispatcherMediaOpenFailureFailsSession(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	ctx := context.Background()
	sess, rec := h.outgoing(t, &stubMedium{})
	require.NoError(t, sess.Start(ctx))

	d := &Dispatcher{Svc: h.svc, OpenMedia: func(context.Context, *Session, []byte) (ports.MediaChannel, error) {
		return nil, errors.New("msrp connect refused")
	}}
	d.HandleResponse(ctx, responseTo(sentInvite(t, h), 200, "OK", []byte(testAnswer)))

	st, _ := sess.State()
	assert.True(t, st.IsTerminal())
	assert.Len(t, rec.transferErrors(), 1)
}

func TestDispatcherUnknownDialog(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	d := &Dispatcher{Svc: h.svc}

	req := sip.NewRequest(sip.BYE, sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"})
	req.AppendHeader(sip.NewHeader("Call-ID", "nope"))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 2, MethodName: sip.BYE})

	res := d.HandleRequest(context.Background(), req)
	require.NotNil(t, res)
	assert.Equal(t, 481, int(res.StatusCode))
}

func TestDispatcherIncomingInvite(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	ctx := context.Background()
	d := &Dispatcher{Svc: h.svc, Resolve: func(*sip.Request) (IncomingRequest, error) {
		return IncomingRequest{Contact: testContact, Medium: &stubMedium{}, Content: testContent}, nil
	}}

	req := sip.NewRequest(sip.INVITE, sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"})
	req.AppendHeader(&sip.FromHeader{
		Address: sip.Uri{Scheme: "sip", User: "+15550100", Host: "ims.example.net"},
		Params:  sip.HeaderParams{"tag": "their-tag"},
	})
	req.AppendHeader(&sip.ToHeader{Address: sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"}, Params: sip.HeaderParams{}})
	req.AppendHeader(sip.NewHeader("Call-ID", "incoming-1"))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	req.SetBody([]byte(testOffer))

	res := d.HandleRequest(ctx, req)
	require.NotNil(t, res)
	assert.Equal(t, 180, int(res.StatusCode))

	sess, ok := h.svc.Registry().ByCallID("incoming-1")
	require.True(t, ok)
	assert.Equal(t, sess.Path().LocalTag, res.To().Params["tag"])
	st, _ := sess.State()
	assert.Equal(t, model.StateInvited, st)
	assert.Equal(t, "their-tag", sess.Path().RemoteTag())

	// retransmitted INVITE is absorbed
	assert.Nil(t, d.HandleRequest(ctx, req))

	cancel := sip.NewRequest(sip.CANCEL, req.Recipient)
	cancel.AppendHeader(sip.NewHeader("Call-ID", "incoming-1"))
	cancel.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.CANCEL})
	res = d.HandleRequest(ctx, cancel)
	assert.Equal(t, 200, int(res.StatusCode))

	st, reason := sess.State()
	assert.Equal(t, model.StateRejected, st)
	assert.Equal(t, model.ReasonRejectedByRemote, reason)
	assert.Equal(t, []int{487}, h.tx.statuses(), "the cancelled INVITE gets its final response")
}

func TestDispatcherIgnoresFailureInEstablishedDialog(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	ctx := context.Background()
	sess, rec := h.outgoing(t, &stubMedium{})
	require.NoError(t, sess.Start(ctx))
	invite := sentInvite(t, h)

	media := &fakeMedia{}
	d := &Dispatcher{Svc: h.svc, OpenMedia: func(context.Context, *Session, []byte) (ports.MediaChannel, error) { return media, nil }}
	d.HandleResponse(ctx, responseTo(invite, 200, "OK", []byte(testAnswer)))
	require.Len(t, rec.stateChanges(), 1)

	d.HandleResponse(ctx, responseTo(invite, 491, "Request Pending", nil))

	st, _ := sess.State()
	assert.Equal(t, model.StateStarted, st)
	assert.Equal(t, model.StateStarted, h.persisted(t, sess).State)
	assert.False(t, sess.IsInterrupted())
	assert.Equal(t, 1, h.svc.Registry().Len())
	assert.Zero(t, media.closeCount())
	assert.Len(t, rec.stateChanges(), 1)
	assert.Equal(t, []sip.RequestMethod{sip.INVITE}, h.tx.methods())

	sess.Close(ctx)
	require.NoError(t, h.svc.Registry().CloseAndWait(ctx))
	assert.Equal(t, model.StateTerminatedByUser, h.persisted(t, sess).State)
}

func TestDispatcherIncomingPolicy(t *testing.T) {
	tests := []struct {
		name       string
		decision   IncomingDecision
		wantReply  int
		wantState  model.State
		wantStatus []int
	}{
		{"ring", Ring, 180, model.StateInvited, nil},
		{"accept", AcceptIncoming, 0, model.StateStarted, []int{200}},
		{"decline", DeclineIncoming, 0, model.StateRejected, []int{603}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil).ready(t)
			ctx := context.Background()
			media := &fakeMedia{}
			var opened []byte
			d := &Dispatcher{
				Svc: h.svc,
				OpenMedia: func(_ context.Context, _ *Session, offer []byte) (ports.MediaChannel, error) {
					opened = offer
					return media, nil
				},
				Resolve: func(*sip.Request) (IncomingRequest, error) {
					return IncomingRequest{Contact: testContact, Medium: &stubMedium{}, Content: testContent}, nil
				},
				Policy: FixedPolicy(tt.decision),
			}

			res := d.HandleRequest(ctx, incomingInvite("policy-1", "+15550100", "their-tag"))
			if tt.wantReply == 0 {
				assert.Nil(t, res)
			} else {
				require.NotNil(t, res)
				assert.Equal(t, tt.wantReply, int(res.StatusCode))
			}

			sess, err := h.svc.Lookup(ctx, testContact, sessionIDFor(t, h, "policy-1"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, sess.State)
			assert.Equal(t, tt.wantStatus, h.tx.statuses())
			if tt.decision == AcceptIncoming {
				assert.Equal(t, testOffer, string(opened))
				assert.Zero(t, media.closeCount())
			}
		})
	}
}

func TestDispatcherAcceptPolicyMediaFailure(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	ctx := context.Background()
	d := &Dispatcher{
		Svc: h.svc,
		OpenMedia: func(context.Context, *Session, []byte) (ports.MediaChannel, error) {
			return nil, errors.New("msrp connect refused")
		},
		Resolve: func(*sip.Request) (IncomingRequest, error) {
			return IncomingRequest{Contact: testContact, Medium: &stubMedium{}, Content: testContent}, nil
		},
		Policy: FixedPolicy(AcceptIncoming),
	}

	assert.Nil(t, d.HandleRequest(ctx, incomingInvite("policy-2", "+15550100", "their-tag")))
	assert.Equal(t, []int{500}, h.tx.statuses())
	assert.Zero(t, h.svc.Registry().Len())
}

func TestParseIncomingDecision(t *testing.T) {
	for in, want := range map[string]IncomingDecision{"": Ring, "ring": Ring, "accept": AcceptIncoming, "decline": DeclineIncoming} {
		got, err := ParseIncomingDecision(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseIncomingDecision("maybe")
	assert.Error(t, err)
}

// sessionIDFor finds the durable record created for callID.
func sessionIDFor(t *testing.T, h *harness, callID string) string {
	t.Helper()
	var id string
	require.NoError(t, h.store.ScanByStates(context.Background(), model.AllStates(), func(rec *model.SessionRecord) error {
		id = rec.SessionID
		return nil
	}))
	require.NotEmpty(t, id, "no record for %s", callID)
	return id
}

func TestDispatcherDeclinesUnresolvedInvite(t *testing.T) {
	h := newHarness(t, nil).ready(t)
	d := &Dispatcher{Svc: h.svc}
	req := sip.NewRequest(sip.INVITE, sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"})
	req.AppendHeader(sip.NewHeader("Call-ID", "incoming-2"))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})

	res := d.HandleRequest(context.Background(), req)
	assert.Equal(t, 488, int(res.StatusCode))
	assert.Equal(t, 0, h.svc.Registry().Len())
}

func TestRejectionReason(t *testing.T) {
	cases := map[int]model.ReasonCode{
		603: model.ReasonRejectedByRemote,
		480: model.ReasonRejectedByTimeout,
		413: model.ReasonRejectedMaxSize,
		488: model.ReasonRejectedMediaFailed,
		507: model.ReasonRejectedLowSpace,
		500: model.ReasonRejectedBySystem,
	}
	for code, want := range cases {
		assert.Equal(t, want, RejectionReason(code), "status %d", code)
	}
}

func byeFor(t *testing.T, sess *Session) *sip.Request {
	t.Helper()
	req := sip.NewRequest(sip.BYE, sess.Path().Local)
	req.AppendHeader(sip.NewHeader("Call-ID", sess.Path().CallID))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.BYE})
	return req
}
