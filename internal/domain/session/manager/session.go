// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/lifecycle"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/telemetry"
)

// Session is one sharing session. Every state change goes through the
// lifecycle tables under the session lock; listeners are notified after the
// lock is released.
//
// Termination has several entry points (user close, remote BYE, signaling
// error, media transfer error, invite timeout). The interrupted flag is
// flipped by exactly one of them; the others return without side effects.
//
// Acceptance and the invite timer race for the settled flag, so a session is
// either started or timed out, never both.
type Session struct {
	id      string
	contact string
	svc     *Service
	medium  sharing.Medium
	path    *dialog.Path
	logger  zerolog.Logger
	// invite is the received INVITE of an incoming session; nil when outgoing.
	invite *sip.Request

	listeners Fanout

	mu          sync.Mutex
	rec         model.SessionRecord
	media       ports.MediaChannel
	inviteTimer *time.Timer

	interrupted        atomic.Bool
	terminatedByRemote atomic.Bool
	settled            atomic.Bool
	answered           atomic.Bool
	teardownOnce       sync.Once
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Contact() string          { return s.contact }
func (s *Session) Medium() sharing.Medium   { return s.medium }
func (s *Session) Path() *dialog.Path       { return s.path }
func (s *Session) IsInterrupted() bool      { return s.interrupted.Load() }
func (s *Session) TerminatedByRemote() bool { return s.terminatedByRemote.Load() }

// State returns the current state and reason.
func (s *Session) State() (model.State, model.ReasonCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.State, s.rec.Reason
}

// Record returns a copy of the session's durable projection.
func (s *Session) Record() model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// AddListener registers l for events emitted from now on.
func (s *Session) AddListener(l ports.Listener) (remove func()) {
	return s.listeners.Add(l)
}

// CreateInvite builds the INVITE for this session without sending or
// recording it. Failures carry the FAILED_INITIATION reason.
func (s *Session) CreateInvite() (*sip.Request, error) {
	body, err := s.medium.InviteBody(s.path)
	if err != nil {
		return nil, lifecycle.NewReasonError(model.ReasonFailedInitiation, "build offer", err)
	}
	req, err := dialog.BuildInvite(s.path, body)
	if err != nil {
		return nil, lifecycle.NewReasonError(model.ReasonFailedInitiation, "build invite", err)
	}
	return req, nil
}

// Start builds and sends the INVITE of an outgoing session. When the invite
// cannot be built nothing is sent, the session fails with FAILED_INITIATION
// and the error is returned.
func (s *Session) Start(ctx context.Context) error {
	ctx, span := s.svc.tracer.Start(ctx, "session.start",
		trace.WithAttributes(telemetry.SessionAttributes(s.id, s.contact, string(s.medium.Kind()))...))
	defer span.End()

	if st, _ := s.State(); st != model.StateInitiating {
		return fmt.Errorf("%w: start in state %s", ErrIllegalTransition, st)
	}

	req, err := s.CreateInvite()
	if err == nil {
		if recErr := s.path.SetLocalContent(req.Body()); recErr != nil {
			return fmt.Errorf("%w: invite already sent", ErrIllegalTransition)
		}
		if sendErr := s.svc.transport.Send(ctx, req); sendErr != nil {
			err = lifecycle.NewReasonError(model.ReasonFailedInitiation, "send invite",
				&dialog.SignalingError{Op: "send invite", Err: sendErr})
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initiation failed")
		s.failWith(ctx, "start", err, lifecycle.Event{Kind: lifecycle.EvInviteFailed, Reason: model.ReasonFailedInitiation, Detail: err.Error()})
		return err
	}
	s.armInviteTimer()
	s.logger.Debug().Str(log.FieldCallID, s.path.CallID).Msg("invite sent")
	return nil
}

// OnProvisional records that the remote has been reached.
func (s *Session) OnProvisional(ctx context.Context) {
	if s.interrupted.Load() {
		return
	}
	if st, _ := s.State(); st != model.StateInitiating {
		// retransmitted or late provisional response
		return
	}
	if changed, ok := s.apply(ctx, fixed(lifecycle.Event{Kind: lifecycle.EvProvisional})); ok {
		s.listeners.Notify(changed)
	}
}

// OnAccepted establishes the dialog with the remote's answer and moves the
// session to STARTED. media is owned by the session from here on and is closed
// on teardown, or immediately if the session was already interrupted or the
// invitation already timed out. For an incoming session the 200 OK carrying
// the local answer is sent before the transition.
func (s *Session) OnAccepted(ctx context.Context, remoteTag string, answer []byte, media ports.MediaChannel) error {
	if st, _ := s.State(); st == model.StateStarted {
		// retransmitted final response
		return nil
	}
	if !s.settled.CompareAndSwap(false, true) {
		if media != nil {
			s.safely("close media", media.Close)
		}
		s.abandonLateAnswer(ctx, remoteTag, answer)
		return fmt.Errorf("%w: invitation already settled", ErrIllegalTransition)
	}
	s.stopInviteTimer()

	s.mu.Lock()
	s.media = media
	s.mu.Unlock()

	if s.interrupted.Load() {
		s.closeMedia()
		s.abandonLateAnswer(ctx, remoteTag, answer)
		return fmt.Errorf("%w: accepted after interruption", ErrIllegalTransition)
	}
	if s.path.RemoteTag() == "" {
		if err := s.path.Establish(remoteTag, answer); err != nil {
			s.HandleError(ctx, err)
			return err
		}
	}
	if err := s.medium.OnAnswer(answer); err != nil {
		s.HandleError(ctx, err)
		return err
	}
	if s.invite != nil {
		if err := s.answerInvite(ctx); err != nil {
			s.HandleError(ctx, err)
			return err
		}
	}

	st, _ := s.State()
	if st == model.StateInitiating {
		// A final response may arrive without a provisional one.
		s.OnProvisional(ctx)
	}
	changed, ok := s.apply(ctx, fixed(lifecycle.Event{Kind: lifecycle.EvAccepted}))
	if !ok {
		if s.invite != nil && s.answered.Load() {
			// the remote holds a dialog from our 200 OK
			s.terminateDialog(ctx)
		}
		return fmt.Errorf("%w: accept in state %s", ErrIllegalTransition, st)
	}
	s.logger.Info().
		Str(log.FieldCallID, s.path.CallID).
		Interface("attributes", s.medium.Attributes()).
		Msg("session started")
	s.listeners.Notify(changed)
	return nil
}

// Accept answers an incoming invitation and starts the session using the
// remote offer recorded on the path.
func (s *Session) Accept(ctx context.Context, media ports.MediaChannel) error {
	if s.invite == nil {
		if media != nil {
			s.safely("close media", media.Close)
		}
		return fmt.Errorf("%w: accept on an outgoing session", ErrIllegalTransition)
	}
	return s.OnAccepted(ctx, s.path.RemoteTag(), s.path.RemoteContent(), media)
}

// OnRejected ends the session with a rejection. reason must be a rejection
// reason code; anything else is recorded as REJECTED_BY_SYSTEM. A failure
// reaching an already started session ends it with FAILED_SHARING and a BYE.
func (s *Session) OnRejected(ctx context.Context, reason model.ReasonCode) {
	if !s.enter("rejected") {
		return
	}
	s.closeMedia()
	s.deregister()

	if st, _ := s.State(); st == model.StateInitiating {
		if changed, ok := s.apply(ctx, fixed(lifecycle.Event{Kind: lifecycle.EvProvisional})); ok {
			s.listeners.Notify(changed)
		}
	}
	changed, ok := s.terminate(ctx, func(from model.State) lifecycle.Event {
		if from == model.StateStarted {
			return lifecycle.Event{Kind: lifecycle.EvSharingFailed, Reason: model.ReasonFailedSharing, Detail: "rejected after start"}
		}
		return lifecycle.Event{Kind: lifecycle.EvRejected, Reason: reason}
	})
	if ok {
		s.endDialog(ctx, changed)
		s.listeners.Notify(changed)
	}
}

// Reject declines an incoming invitation on behalf of the user.
func (s *Session) Reject(ctx context.Context) {
	s.OnRejected(ctx, model.ReasonRejectedByUser)
}

// OnProgress forwards transfer progress to listeners.
func (s *Session) OnProgress(current, total int64) {
	if s.interrupted.Load() {
		return
	}
	s.listeners.Notify(ports.Progress{Session: s.id, Current: current, Total: total})
}

// ReceiveBye handles a BYE from the remote. The dialog is marked terminated
// before anything else so later media errors are recognised as consequences
// of the remote leaving.
func (s *Session) ReceiveBye(ctx context.Context) {
	s.terminatedByRemote.Store(true)
	s.path.Terminate()
	if !s.enter("remote_bye") {
		return
	}
	s.closeMedia()
	s.deregister()

	changed, ok := s.terminate(ctx, func(from model.State) lifecycle.Event {
		switch from {
		case model.StateStarted:
			return lifecycle.Event{Kind: lifecycle.EvRemoteBye}
		case model.StateInvited:
			return lifecycle.Event{Kind: lifecycle.EvRejected, Reason: model.ReasonRejectedByRemote}
		default:
			return lifecycle.Event{Kind: lifecycle.EvSharingFailed, Detail: "remote left during initiation"}
		}
	})
	if ok {
		s.endDialog(ctx, changed)
		s.listeners.Notify(changed)
	}
}

// Close is the user-initiated close. An established dialog is ended with a
// best-effort BYE.
func (s *Session) Close(ctx context.Context) {
	if !s.enter("user_close") {
		return
	}
	s.closeMedia()
	s.deregister()

	changed, ok := s.terminate(ctx, func(from model.State) lifecycle.Event {
		switch from {
		case model.StateStarted:
			return lifecycle.Event{Kind: lifecycle.EvUserClosed}
		case model.StateInvited:
			return lifecycle.Event{Kind: lifecycle.EvRejected, Reason: model.ReasonRejectedByUser}
		default:
			return lifecycle.Event{Kind: lifecycle.EvInviteFailed, Detail: "aborted by user"}
		}
	})
	if ok {
		s.endDialog(ctx, changed)
		s.listeners.Notify(changed)
	}
}

// closeBySystem ends the session on behalf of the process, e.g. on shutdown.
func (s *Session) closeBySystem(ctx context.Context) {
	if !s.enter("system_close") {
		return
	}
	s.closeMedia()
	s.deregister()

	changed, ok := s.terminate(ctx, func(from model.State) lifecycle.Event {
		switch from {
		case model.StateStarted:
			return lifecycle.Event{Kind: lifecycle.EvSystemClosed}
		case model.StateInvited:
			return lifecycle.Event{Kind: lifecycle.EvRejected, Reason: model.ReasonRejectedBySystem}
		default:
			return lifecycle.Event{Kind: lifecycle.EvInviteFailed, Detail: "closed by system"}
		}
	})
	if ok {
		s.endDialog(ctx, changed)
		s.listeners.Notify(changed)
	}
}

// HandleError terminates the session after a signaling or sharing error. The
// resulting state depends on the phase and on the reason err carries.
func (s *Session) HandleError(ctx context.Context, err error) {
	if !s.enter("error") {
		return
	}
	s.closeMedia()
	s.deregister()

	changed, ok := s.terminate(ctx, func(from model.State) lifecycle.Event {
		return lifecycle.EventFromCause(from, err)
	})
	if ok {
		s.endDialog(ctx, changed)
	}
	if s.medium.CapabilityRefreshOnError() {
		s.requestCapabilities("error")
	}
	if ok {
		s.listeners.Notify(changed)
		s.listeners.Notify(ports.TransferError{
			Session: s.id,
			Contact: s.contact,
			Reason:  changed.Reason,
			Err:     err,
		})
	}
}

// HandleTransferError handles a failure reported by the media channel. It is
// a no-op when the session is already interrupted or the dialog already
// terminated, which covers errors caused by the remote leaving. Otherwise it
// ends the dialog, closes media, refreshes the remote's capabilities,
// deregisters the session and reports MEDIA_TRANSFER_FAILED to listeners
// exactly once.
func (s *Session) HandleTransferError(ctx context.Context, msgID string, err error, chunkType string) {
	if s.interrupted.Load() || s.path.IsTerminated() {
		teardownSuppressedTotal.WithLabelValues("transfer_error").Inc()
		return
	}
	if !s.enter("transfer_error") {
		return
	}

	s.logger.Warn().
		Err(err).
		Str(log.FieldMsgID, msgID).
		Str("chunk_type", chunkType).
		Msg("media transfer error")

	s.terminateDialog(ctx)
	s.closeMedia()
	s.requestCapabilities("transfer_error")
	s.deregister()

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	changed, ok := s.terminate(ctx, fixed(lifecycle.Event{
		Kind:   lifecycle.EvMediaFailed,
		Reason: model.ReasonMediaTransferFailed,
		Detail: detail,
	}))
	if !ok {
		return
	}
	s.endDialog(ctx, changed)
	s.listeners.Notify(changed)
	s.listeners.Notify(ports.TransferError{
		Session:   s.id,
		Contact:   s.contact,
		MsgID:     msgID,
		ChunkType: chunkType,
		Reason:    changed.Reason,
		Err:       err,
	})
}

// failWith is the teardown path of errors raised before the dialog exists.
func (s *Session) failWith(ctx context.Context, entry string, err error, ev lifecycle.Event) {
	if !s.enter(entry) {
		return
	}
	s.closeMedia()
	s.deregister()
	changed, ok := s.terminate(ctx, fixed(ev))
	if !ok {
		return
	}
	s.listeners.Notify(changed)
	s.listeners.Notify(ports.TransferError{
		Session: s.id,
		Contact: s.contact,
		Reason:  changed.Reason,
		Err:     err,
	})
}

// enter flips the interruption guard. Only the first caller proceeds.
func (s *Session) enter(entry string) bool {
	if !s.interrupted.CompareAndSwap(false, true) {
		teardownSuppressedTotal.WithLabelValues(entry).Inc()
		s.logger.Debug().Str(log.FieldEvent, entry).Msg("session already interrupted")
		return false
	}
	s.stopInviteTimer()
	return true
}

// terminate applies the terminating event chosen by pick. When the lifecycle
// refuses it the session fails with FAILED_SHARING instead, so a torn-down
// session never stays non-terminal.
func (s *Session) terminate(ctx context.Context, pick func(model.State) lifecycle.Event) (ports.StateChanged, bool) {
	if changed, ok := s.apply(ctx, pick); ok {
		return changed, true
	}
	if st, _ := s.State(); st.IsTerminal() {
		return ports.StateChanged{}, false
	}
	return s.apply(ctx, fixed(lifecycle.Event{
		Kind:   lifecycle.EvSharingFailed,
		Reason: model.ReasonFailedSharing,
		Detail: "terminating event refused",
	}))
}

func fixed(ev lifecycle.Event) func(model.State) lifecycle.Event {
	return func(model.State) lifecycle.Event { return ev }
}

// apply dispatches the event chosen by pick for the current state and writes
// the result to the store. Repeated provisional or accept signals are dropped
// quietly.
func (s *Session) apply(ctx context.Context, pick func(model.State) lifecycle.Event) (ports.StateChanged, bool) {
	s.mu.Lock()
	from := s.rec.State
	ev := pick(from)
	if lifecycle.ForbiddenTransitionReason(from, ev.Kind) == lifecycle.ForbiddenAlreadyInState {
		s.mu.Unlock()
		fsmIgnoredTotal.WithLabelValues(string(from), ev.Kind.String()).Inc()
		return ports.StateChanged{}, false
	}
	now := s.svc.now()
	tr, err := lifecycle.Dispatch(&s.rec, ev, now)
	if err != nil {
		s.mu.Unlock()
		fsmIgnoredTotal.WithLabelValues(string(from), ev.Kind.String()).Inc()
		s.logger.Debug().Err(err).Str(log.FieldEvent, ev.Kind.String()).Msg("event ignored")
		return ports.StateChanged{}, false
	}
	// The write stays under the lock so the store sees transitions in order.
	if perr := s.svc.SetStateAndReasonCode(context.WithoutCancel(ctx), s.contact, s.id, tr.To, tr.Reason); perr != nil {
		persistFailuresTotal.WithLabelValues(string(tr.To)).Inc()
		s.logger.Error().Err(perr).Str(log.FieldToState, string(tr.To)).Msg("persist session state")
	}
	s.mu.Unlock()

	recordTransition(from, tr.To)
	trace.SpanFromContext(ctx).AddEvent("transition",
		trace.WithAttributes(telemetry.TransitionAttributes(string(from), string(tr.To), string(tr.Reason))...))
	evt := s.logger.Info()
	if tr.To.IsTerminal() {
		recordSessionEnd(tr.To, tr.Reason, s.medium.Kind())
		if tr.Reason != model.ReasonNone {
			evt = s.logger.Warn()
		}
	}
	evt.
		Str(log.FieldEvent, ev.Kind.String()).
		Str(log.FieldFromState, string(from)).
		Str(log.FieldToState, string(tr.To)).
		Str(log.FieldReason, string(tr.Reason)).
		Str("detail", tr.Detail).
		Msg("session transition")

	return ports.StateChanged{
		Session: s.id,
		Contact: s.contact,
		From:    from,
		To:      tr.To,
		Reason:  tr.Reason,
		At:      now,
	}, true
}

// closeMedia closes the media channel once and releases medium resources.
// Failures are logged and never propagate.
func (s *Session) closeMedia() {
	s.mu.Lock()
	media := s.media
	s.media = nil
	s.mu.Unlock()

	if media != nil {
		s.safely("close media", media.Close)
	}
	s.teardownOnce.Do(func() {
		s.safely("medium teardown", s.medium.Teardown)
	})
}

func (s *Session) safely(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("op", op).Msg("cleanup panicked")
		}
	}()
	if err := fn(); err != nil {
		s.logger.Warn().Err(err).Str("op", op).Msg("cleanup failed")
	}
}

// terminateDialog sends a BYE if the dialog is established and not yet
// terminated. The send runs on a registry worker when one is available.
func (s *Session) terminateDialog(ctx context.Context) {
	if s.path.RemoteTag() == "" || !s.path.Terminate() {
		return
	}
	req := dialog.BuildBye(s.path)
	send := func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.svc.cfg.ByeTimeout)
		defer cancel()
		if err := s.svc.transport.Send(sendCtx, req); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldCallID, s.path.CallID).Msg("send bye failed")
		}
	}
	if !s.svc.registry.Go(send) {
		send()
	}
}

// endDialog finishes the signaling side of a terminal transition: a BYE for an
// established dialog, a final response for an unanswered incoming invitation.
func (s *Session) endDialog(ctx context.Context, changed ports.StateChanged) {
	switch changed.From {
	case model.StateStarted:
		s.terminateDialog(ctx)
	case model.StateInvited:
		code, phrase := FinalResponseFor(changed.Reason)
		s.respond(ctx, code, phrase, nil)
	}
}

// answerInvite sends the 200 OK carrying the local answer.
func (s *Session) answerInvite(ctx context.Context) error {
	var answer []byte
	if a, ok := s.medium.(sharing.Answerer); ok {
		body, err := a.AnswerBody(s.path)
		if err != nil {
			return fmt.Errorf("build answer: %w", err)
		}
		answer = body
	} else {
		body, err := s.medium.InviteBody(s.path)
		if err != nil {
			return fmt.Errorf("build answer: %w", err)
		}
		answer = body.SDP
	}
	if err := s.path.SetLocalContent(answer); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if err := s.respond(ctx, 200, "OK", answer); err != nil {
		return &dialog.SignalingError{Op: "send answer", Err: err}
	}
	return nil
}

// respond sends the single final response to an incoming invitation. Later
// calls and calls on outgoing sessions do nothing.
func (s *Session) respond(ctx context.Context, code int, phrase string, body []byte) error {
	if s.invite == nil || !s.answered.CompareAndSwap(false, true) {
		return nil
	}
	res := s.response(code, phrase, body)
	if body != nil {
		res.AppendHeader(sip.NewHeader("Content-Type", dialog.ContentTypeSDP))
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.svc.cfg.ByeTimeout)
	defer cancel()
	err := s.svc.transport.Respond(sendCtx, res)
	result := "ok"
	if err != nil {
		result = "error"
		s.logger.Warn().Err(err).Int("status", code).Str(log.FieldCallID, s.path.CallID).Msg("send final response failed")
	}
	finalResponsesTotal.WithLabelValues(strconv.Itoa(code), result).Inc()
	return err
}

// response builds a response to the received INVITE carrying the local tag.
func (s *Session) response(code int, phrase string, body []byte) *sip.Response {
	res := sip.NewResponseFromRequest(s.invite, code, phrase, body)
	if to := res.To(); to != nil {
		if to.Params == nil {
			to.Params = sip.HeaderParams{}
		}
		to.Params["tag"] = s.path.LocalTag
	}
	return res
}

// abandonLateAnswer ends a dialog the remote accepted after the invitation was
// already settled locally.
func (s *Session) abandonLateAnswer(ctx context.Context, remoteTag string, answer []byte) {
	if s.invite != nil || remoteTag == "" || s.path.RemoteTag() != "" {
		return
	}
	if err := s.path.Establish(remoteTag, answer); err != nil {
		return
	}
	s.terminateDialog(ctx)
}

// armInviteTimer bounds how long the invitation may stay unanswered.
func (s *Session) armInviteTimer() {
	d := s.svc.cfg.InviteTimeout
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inviteTimer != nil || s.interrupted.Load() || s.settled.Load() {
		return
	}
	s.inviteTimer = time.AfterFunc(d, func() { s.inviteExpired(d) })
}

func (s *Session) stopInviteTimer() {
	s.mu.Lock()
	t := s.inviteTimer
	s.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (s *Session) inviteExpired(after time.Duration) {
	if !s.settled.CompareAndSwap(false, true) {
		return
	}
	inviteTimeoutsTotal.WithLabelValues(string(s.Record().Direction)).Inc()
	s.logger.Info().Dur("timeout", after).Str(log.FieldCallID, s.path.CallID).Msg("invitation not answered")
	s.HandleError(context.Background(), fmt.Errorf("no final answer within %s: %w", after, context.DeadlineExceeded))
}

func (s *Session) requestCapabilities(trigger string) {
	if s.svc.capabilities == nil {
		return
	}
	capabilityRefreshTotal.WithLabelValues(trigger).Inc()
	s.svc.capabilities.RequestCapabilities(s.contact)
}

func (s *Session) deregister() {
	s.svc.registry.Remove(s)
}
