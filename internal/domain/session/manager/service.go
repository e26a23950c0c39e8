// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager runs sharing sessions: it owns the live session registry,
// drives each session through the lifecycle tables and reconciles stale
// records left behind by a previous process.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/telemetry"
)

const (
	defaultByeTimeout    = 5 * time.Second
	defaultInviteTimeout = 60 * time.Second
)

// Config holds the addressing and timing of the local endpoint.
type Config struct {
	// LocalURI is the identity placed in From and Contact.
	LocalURI sip.Uri
	// Domain routes telephone-number contacts.
	Domain     string
	ByeTimeout time.Duration
	// InviteTimeout bounds how long an invitation may wait for a final
	// answer, in either direction.
	InviteTimeout time.Duration
	// ReportPath receives the JSON report of the startup reconciliation. Empty disables it.
	ReportPath string
}

// Deps are the collaborators of a Service. Store and Transport are required.
type Deps struct {
	Store        store.StateStore
	Transport    ports.SignalingTransport
	Capabilities ports.CapabilityRequester
	// Observers are attached to every session the service creates.
	Observers []ports.Listener
	Logger    *zerolog.Logger
	Tracer    trace.Tracer
	Now       func() time.Time
}

// Service creates sessions and is the single writer of their durable state.
type Service struct {
	cfg          Config
	store        store.StateStore
	transport    ports.SignalingTransport
	capabilities ports.CapabilityRequester
	observers    []ports.Listener
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
	validate     *validator.Validate

	registry   *Registry
	reconciler *Reconciler

	readyOnce sync.Once
	ready     chan struct{}
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("manager: store is required")
	}
	if deps.Transport == nil {
		return nil, errors.New("manager: signaling transport is required")
	}
	if cfg.ByeTimeout <= 0 {
		cfg.ByeTimeout = defaultByeTimeout
	}
	if cfg.InviteTimeout <= 0 {
		cfg.InviteTimeout = defaultInviteTimeout
	}
	s := &Service{
		cfg:          cfg,
		store:        deps.Store,
		transport:    deps.Transport,
		capabilities: deps.Capabilities,
		observers:    append([]ports.Listener(nil), deps.Observers...),
		tracer:       deps.Tracer,
		now:          deps.Now,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		registry:     NewRegistry(),
		ready:        make(chan struct{}),
	}
	if deps.Logger != nil {
		s.logger = *deps.Logger
	} else {
		s.logger = log.WithComponent("session.manager")
	}
	if s.tracer == nil {
		s.tracer = telemetry.SessionTracer()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.reconciler = NewReconciler(s.store, s, s.logger, cfg.ReportPath)
	return s, nil
}

// Registry exposes the live sessions.
func (s *Service) Registry() *Registry { return s.registry }

// SetStateAndReasonCode is the one place session state reaches the store.
// Live sessions and the reconciler both write through it.
func (s *Service) SetStateAndReasonCode(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode) error {
	if err := s.store.SetStateAndReason(ctx, contact, id, state, reason, s.now()); err != nil {
		return fmt.Errorf("set state %s/%s for %s: %w", state, reason, id, err)
	}
	return nil
}

// Recover runs the startup reconciliation. New sessions are refused until it
// has returned. Later calls return the first pass's result.
func (s *Service) Recover(ctx context.Context) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "session.recover")
	defer span.End()

	rep, err := s.reconciler.Run(ctx)
	s.readyOnce.Do(func() { close(s.ready) })
	span.SetAttributes(telemetry.RecoveryAttributes(rep.Scanned, rep.Recovered, rep.Failed)...)
	if err != nil {
		span.RecordError(err)
	}
	return rep, err
}

// Recovered reports whether startup reconciliation has completed.
func (s *Service) Recovered() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// RecoveryReport returns the startup reconciliation report once Recover has
// returned.
func (s *Service) RecoveryReport() (Report, bool) {
	if !s.Recovered() {
		return Report{}, false
	}
	return s.reconciler.report, true
}

// OutgoingRequest describes a share initiated by the local user.
type OutgoingRequest struct {
	Contact string `validate:"required"`
	Medium  sharing.Medium
	Content model.Content
}

// NewOutgoing creates and persists an INITIATING session. The caller starts it
// with Session.Start.
func (s *Service) NewOutgoing(ctx context.Context, req OutgoingRequest) (*Session, error) {
	if !s.Recovered() {
		return nil, ErrNotRecovered
	}
	if err := s.validateRequest(req.Contact, req.Medium, req.Content); err != nil {
		return nil, err
	}
	remote, err := dialog.ContactURI(req.Contact, s.cfg.Domain)
	if err != nil {
		return nil, err
	}
	path := dialog.NewPath(s.cfg.LocalURI, remote, model.NewContributionID(), req.Medium.FeatureTag())
	return s.register(ctx, req.Contact, model.DirectionOutgoing, model.StateInitiating, req.Medium, req.Content, path, nil)
}

// IncomingRequest describes a received invitation. Invite is the received
// request; final responses to it are built from it.
type IncomingRequest struct {
	Invite         *sip.Request `validate:"-"`
	Contact        string       `validate:"required"`
	CallID         string       `validate:"required"`
	RemoteTag      string       `validate:"required"`
	ContributionID string
	Offer          []byte
	Medium         sharing.Medium `validate:"-"`
	Content        model.Content  `validate:"-"`
}

// NewIncoming creates and persists an INVITED session for a received
// invitation. The user answers with Session.Accept or Session.Reject; without
// an answer the invitation times out after Config.InviteTimeout.
func (s *Service) NewIncoming(ctx context.Context, req IncomingRequest) (*Session, error) {
	if !s.Recovered() {
		return nil, ErrNotRecovered
	}
	if err := s.validateRequest(req.Contact, req.Medium, req.Content); err != nil {
		return nil, err
	}
	if req.Invite == nil {
		return nil, errors.New("invalid incoming session: no invite")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid incoming session: %w", err)
	}
	remote, err := dialog.ContactURI(req.Contact, s.cfg.Domain)
	if err != nil {
		return nil, err
	}
	contributionID := req.ContributionID
	if contributionID == "" {
		contributionID = model.NewContributionID()
	}
	path := dialog.NewPath(s.cfg.LocalURI, remote, contributionID, req.Medium.FeatureTag())
	path.CallID = req.CallID
	if err := path.Establish(req.RemoteTag, req.Offer); err != nil {
		return nil, err
	}
	sess, err := s.register(ctx, req.Contact, model.DirectionIncoming, model.StateInvited, req.Medium, req.Content, path, req.Invite)
	if err != nil {
		return nil, err
	}
	sess.armInviteTimer()
	return sess, nil
}

func (s *Service) validateRequest(contact string, medium sharing.Medium, content model.Content) error {
	if contact == "" {
		return fmt.Errorf("%w: empty contact", dialog.ErrInvalidAddress)
	}
	if medium == nil {
		return errors.New("manager: medium is required")
	}
	if medium.Kind() == model.MediumVideoStreaming {
		return nil
	}
	if err := s.validate.Struct(content); err != nil {
		return fmt.Errorf("invalid content: %w", err)
	}
	return nil
}

func (s *Service) register(ctx context.Context, contact string, dir model.Direction, state model.State,
	medium sharing.Medium, content model.Content, path *dialog.Path, invite *sip.Request) (*Session, error) {
	now := s.now()
	rec := model.SessionRecord{
		SessionID:     model.NewSessionID(),
		Contact:       contact,
		Medium:        medium.Kind(),
		Direction:     dir,
		State:         state,
		Reason:        model.ReasonNone,
		Content:       content,
		CreatedAtUnix: now.Unix(),
		UpdatedAtUnix: now.Unix(),
	}
	sess := &Session{
		id:      rec.SessionID,
		contact: contact,
		svc:     s,
		medium:  medium,
		path:    path,
		invite:  invite,
		rec:     rec,
		logger: s.logger.With().
			Str(log.FieldSessionID, rec.SessionID).
			Str(log.FieldContact, contact).
			Str(log.FieldMedium, string(rec.Medium)).
			Logger(),
	}
	for _, o := range s.observers {
		sess.listeners.Add(o)
	}

	if err := s.store.PutSession(ctx, &rec); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	if err := s.registry.Add(sess); err != nil {
		if delErr := s.store.DeleteSession(context.WithoutCancel(ctx), contact, rec.SessionID); delErr != nil {
			s.logger.Warn().Err(delErr).Str(log.FieldSessionID, rec.SessionID).Msg("remove unregistered session")
		}
		return nil, err
	}
	sess.logger.Info().
		Str("direction", string(dir)).
		Str(log.FieldToState, string(state)).
		Msg("session created")
	return sess, nil
}

// Get returns a live session.
func (s *Service) Get(id string) (*Session, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Lookup returns the durable record of any session, live or finished.
func (s *Service) Lookup(ctx context.Context, contact, id string) (*model.SessionRecord, error) {
	rec, err := s.store.GetSession(ctx, contact, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rec, err
}

// Shutdown closes every live session on behalf of the system and waits for
// background signaling to drain.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, sess := range s.registry.List() {
		sess.closeBySystem(ctx)
	}
	return s.registry.CloseAndWait(ctx)
}
