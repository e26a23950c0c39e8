// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
)

const testContact = "tel:+15550100"

var fixedNow = time.Unix(1_700_000_000, 0)

func testLogger() zerolog.Logger { return zerolog.Nop() }

// recordingTransport captures every request handed to Send and every
// response handed to Respond.
type recordingTransport struct {
	mu        sync.Mutex
	sent      []*sip.Request
	responses []*sip.Response
	err       error
}

func (t *recordingTransport) Send(_ context.Context, req *sip.Request) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, req)
	return t.err
}

func (t *recordingTransport) Respond(_ context.Context, res *sip.Response) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, res)
	return t.err
}

func (t *recordingTransport) statuses() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, len(t.responses))
	for i, r := range t.responses {
		out[i] = int(r.StatusCode)
	}
	return out
}

func (t *recordingTransport) lastResponse() *sip.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.responses) == 0 {
		return nil
	}
	return t.responses[len(t.responses)-1]
}

func (t *recordingTransport) methods() []sip.RequestMethod {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sip.RequestMethod, len(t.sent))
	for i, r := range t.sent {
		out[i] = r.Method
	}
	return out
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

type countingCapabilities struct {
	mu       sync.Mutex
	contacts []string
}

func (c *countingCapabilities) RequestCapabilities(contact string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts = append(c.contacts, contact)
}

func (c *countingCapabilities) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contacts)
}

type fakeMedia struct {
	mu     sync.Mutex
	closed int
	err    error
	panics bool
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	if m.panics {
		panic("media close exploded")
	}
	return m.err
}

func (m *fakeMedia) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// eventRecorder collects listener notifications in delivery order.
type eventRecorder struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *eventRecorder) OnEvent(ev ports.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) transferErrors() []ports.TransferError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.TransferError
	for _, ev := range r.events {
		if te, ok := ev.(ports.TransferError); ok {
			out = append(out, te)
		}
	}
	return out
}

func (r *eventRecorder) stateChanges() []ports.StateChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.StateChanged
	for _, ev := range r.events {
		if sc, ok := ev.(ports.StateChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

// stubMedium is a Medium with scripted offer and answer behaviour.
type stubMedium struct {
	kind       model.Medium
	offerErr   error
	answerErr  error
	refresh    bool
	teardowns  int
	mu         sync.Mutex
	answerSeen []byte
}

func (m *stubMedium) Kind() model.Medium {
	if m.kind == "" {
		return model.MediumFileTransfer
	}
	return m.kind
}
func (m *stubMedium) FeatureTag() string { return sharing.FeatureTagFileTransfer }
func (m *stubMedium) InviteBody(*dialog.Path) (dialog.Body, error) {
	if m.offerErr != nil {
		return dialog.Body{}, m.offerErr
	}
	return dialog.Body{SDP: []byte(testOffer)}, nil
}
func (m *stubMedium) OnAnswer(answer []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answerSeen = answer
	return m.answerErr
}
func (m *stubMedium) Attributes() map[string]string  { return map[string]string{"stub": "true"} }
func (m *stubMedium) CapabilityRefreshOnError() bool { return m.refresh }
func (m *stubMedium) Teardown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardowns++
	return nil
}

var testOffer = strings.Join([]string{
	"v=0",
	"o=- 1 1 IN IP4 10.0.0.1",
	"s=-",
	"c=IN IP4 10.0.0.1",
	"t=0 0",
	"m=message 7394 TCP/MSRP *",
	"a=path:msrp://10.0.0.1:7394/local;tcp",
	"",
}, "\r\n")

var testAnswer = strings.Join([]string{
	"v=0",
	"o=- 2 2 IN IP4 10.0.0.2",
	"s=-",
	"c=IN IP4 10.0.0.2",
	"t=0 0",
	"m=message 7395 TCP/MSRP *",
	"a=path:msrp://10.0.0.2:7395/remote;tcp",
	"",
}, "\r\n")

var testContent = model.Content{Name: "photo.jpg", MimeType: "image/jpeg", Size: 2048}

type harness struct {
	svc   *Service
	store store.StateStore
	tx    *recordingTransport
	caps  *countingCapabilities
	clock *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T, st store.StateStore, opts ...func(*Config)) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	h := &harness{
		store: st,
		tx:    &recordingTransport{},
		caps:  &countingCapabilities{},
		clock: &fakeClock{now: fixedNow},
	}
	logger := testLogger()
	cfg := Config{
		LocalURI: sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"},
		Domain:   "ims.example.net",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	svc, err := NewService(cfg, Deps{
		Store:        st,
		Transport:    h.tx,
		Capabilities: h.caps,
		Logger:       &logger,
		Now:          h.clock.Now,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

// ready runs the startup reconciliation so sessions can be created.
func (h *harness) ready(t *testing.T) *harness {
	t.Helper()
	_, err := h.svc.Recover(context.Background())
	require.NoError(t, err)
	return h
}

func (h *harness) outgoing(t *testing.T, medium sharing.Medium) (*Session, *eventRecorder) {
	t.Helper()
	sess, err := h.svc.NewOutgoing(context.Background(), OutgoingRequest{
		Contact: testContact,
		Medium:  medium,
		Content: testContent,
	})
	require.NoError(t, err)
	rec := &eventRecorder{}
	sess.AddListener(rec)
	return sess, rec
}

// started drives a fresh outgoing session to STARTED.
func (h *harness) started(t *testing.T, medium sharing.Medium, media ports.MediaChannel) (*Session, *eventRecorder) {
	t.Helper()
	ctx := context.Background()
	sess, rec := h.outgoing(t, medium)
	require.NoError(t, sess.Start(ctx))
	sess.OnProvisional(ctx)
	require.NoError(t, sess.OnAccepted(ctx, "remote-tag", []byte(testAnswer), media))
	st, _ := sess.State()
	require.Equal(t, model.StateStarted, st)
	return sess, rec
}

func withInviteTimeout(d time.Duration) func(*Config) {
	return func(c *Config) { c.InviteTimeout = d }
}

// incomingInvite is an INVITE from contact as the remote would send it.
func incomingInvite(callID, fromUser, fromTag string) *sip.Request {
	req := sip.NewRequest(sip.INVITE, sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"})
	req.AppendHeader(&sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "WS",
		Host:            "remote.invalid",
		Params:          sip.HeaderParams{"branch": sip.GenerateBranch()},
	})
	req.AppendHeader(&sip.FromHeader{
		Address: sip.Uri{Scheme: "sip", User: fromUser, Host: "ims.example.net"},
		Params:  sip.HeaderParams{"tag": fromTag},
	})
	req.AppendHeader(&sip.ToHeader{Address: sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.net"}, Params: sip.HeaderParams{}})
	req.AppendHeader(sip.NewHeader("Call-ID", callID))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	req.SetBody([]byte(testOffer))
	return req
}

// incoming registers an INVITED session for an invite from fromUser.
func (h *harness) incoming(t *testing.T, callID, fromUser string) (*Session, *eventRecorder) {
	t.Helper()
	invite := incomingInvite(callID, fromUser, fromUser+"-tag")
	sess, err := h.svc.NewIncoming(context.Background(), IncomingRequest{
		Invite:    invite,
		Contact:   "sip:" + fromUser + "@ims.example.net",
		CallID:    callID,
		RemoteTag: fromUser + "-tag",
		Offer:     invite.Body(),
		Medium:    &stubMedium{},
		Content:   testContent,
	})
	require.NoError(t, err)
	rec := &eventRecorder{}
	sess.AddListener(rec)
	return sess, rec
}

func (h *harness) persisted(t *testing.T, sess *Session) *model.SessionRecord {
	t.Helper()
	rec, err := h.store.GetSession(context.Background(), sess.Contact(), sess.ID())
	require.NoError(t, err)
	return rec
}

// failingSetterStore fails SetStateAndReason for the listed session ids.
type failingSetterStore struct {
	store.StateStore
	failIDs map[string]bool
	scanErr error
}

func (f *failingSetterStore) SetStateAndReason(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode, now time.Time) error {
	if f.failIDs[id] {
		return errors.New("disk full")
	}
	return f.StateStore.SetStateAndReason(ctx, contact, id, state, reason, now)
}

func (f *failingSetterStore) ScanByStates(ctx context.Context, states []model.State, fn store.RowFunc) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	return f.StateStore.ScanByStates(ctx, states, fn)
}

func seedRecord(t *testing.T, st store.StateStore, id string, state model.State, reason model.ReasonCode) {
	t.Helper()
	require.NoError(t, st.PutSession(context.Background(), &model.SessionRecord{
		SessionID:     id,
		Contact:       testContact,
		Medium:        model.MediumFileTransfer,
		Direction:     model.DirectionOutgoing,
		State:         state,
		Reason:        reason,
		Content:       testContent,
		CreatedAtUnix: 1_600_000_000,
		UpdatedAtUnix: 1_600_000_000,
	}))
}
