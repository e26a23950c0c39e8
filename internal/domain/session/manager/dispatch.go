// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/emiago/sipgo/sip"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/log"
)

// MediaOpener opens the media channel of a session whose dialog was just
// accepted with answer. A nil opener leaves media management to the caller.
type MediaOpener func(ctx context.Context, sess *Session, answer []byte) (ports.MediaChannel, error)

// IncomingResolver fills in the medium and content of a received invitation.
// Returning an error declines the invitation.
type IncomingResolver func(req *sip.Request) (IncomingRequest, error)

// IncomingDecision is what the local endpoint does with a received
// invitation once it is registered.
type IncomingDecision int

const (
	// Ring leaves the invitation to the user; unanswered it times out.
	Ring IncomingDecision = iota
	AcceptIncoming
	DeclineIncoming
)

// IncomingPolicy decides a freshly registered incoming session.
type IncomingPolicy func(sess *Session) IncomingDecision

// ParseIncomingDecision reads "ring", "accept" or "decline". Empty means ring.
func ParseIncomingDecision(s string) (IncomingDecision, error) {
	switch s {
	case "", "ring":
		return Ring, nil
	case "accept":
		return AcceptIncoming, nil
	case "decline":
		return DeclineIncoming, nil
	default:
		return Ring, fmt.Errorf("unknown incoming policy %q", s)
	}
}

// FixedPolicy applies the same decision to every invitation.
func FixedPolicy(d IncomingDecision) IncomingPolicy {
	return func(*Session) IncomingDecision { return d }
}

// Dispatcher routes inbound signaling to live sessions by Call-ID.
type Dispatcher struct {
	Svc       *Service
	OpenMedia MediaOpener
	Resolve   IncomingResolver
	// Policy decides received invitations. Nil rings.
	Policy IncomingPolicy
}

// HandleResponse applies a response to the INVITE of an outgoing session.
// Responses to other requests and to unknown dialogs are dropped, and so are
// failure responses once the session has started: they answer a request
// inside the dialog and leave it intact.
func (d *Dispatcher) HandleResponse(ctx context.Context, res *sip.Response) {
	callID := res.CallID()
	cseq := res.CSeq()
	if callID == nil || cseq == nil || cseq.MethodName != sip.INVITE {
		return
	}
	sess, ok := d.Svc.registry.ByCallID(callID.Value())
	if !ok {
		log.L().Debug().Str(log.FieldCallID, callID.Value()).Int("status", int(res.StatusCode)).Msg("response for unknown dialog")
		return
	}

	code := int(res.StatusCode)
	switch {
	case code == 100:
	case code < 200:
		sess.OnProvisional(ctx)
	case code < 300:
		if st, _ := sess.State(); st == model.StateStarted {
			return
		}
		var media ports.MediaChannel
		if d.OpenMedia != nil {
			m, err := d.OpenMedia(ctx, sess, res.Body())
			if err != nil {
				sess.HandleError(ctx, fmt.Errorf("open media: %w", err))
				return
			}
			media = m
		}
		toTag := ""
		if to := res.To(); to != nil {
			toTag = to.Params["tag"]
		}
		if err := sess.OnAccepted(ctx, toTag, res.Body(), media); err != nil && !errors.Is(err, ErrIllegalTransition) {
			sess.logger.Warn().Err(err).Msg("accept failed")
		}
	default:
		if st, _ := sess.State(); st == model.StateStarted {
			sess.logger.Debug().Int("status", code).Msg("failure response in established dialog ignored")
			return
		}
		sess.OnRejected(ctx, RejectionReason(code))
	}
}

// HandleRequest processes a request from the remote and returns the response
// to send, or nil when none is due.
func (d *Dispatcher) HandleRequest(ctx context.Context, req *sip.Request) *sip.Response {
	switch req.Method {
	case sip.BYE:
		sess, ok := d.lookup(req)
		if !ok {
			return sip.NewResponseFromRequest(req, 481, "Call/Transaction Does Not Exist", nil)
		}
		sess.ReceiveBye(ctx)
		return sip.NewResponseFromRequest(req, 200, "OK", nil)
	case sip.CANCEL:
		sess, ok := d.lookup(req)
		if !ok {
			return sip.NewResponseFromRequest(req, 481, "Call/Transaction Does Not Exist", nil)
		}
		sess.ReceiveBye(ctx)
		return sip.NewResponseFromRequest(req, 200, "OK", nil)
	case sip.INVITE:
		return d.invite(ctx, req)
	case sip.ACK:
		return nil
	default:
		return sip.NewResponseFromRequest(req, 405, "Method Not Allowed", nil)
	}
}

func (d *Dispatcher) lookup(req *sip.Request) (*Session, bool) {
	callID := req.CallID()
	if callID == nil {
		return nil, false
	}
	return d.Svc.registry.ByCallID(callID.Value())
}

func (d *Dispatcher) invite(ctx context.Context, req *sip.Request) *sip.Response {
	if _, exists := d.lookup(req); exists {
		// retransmission
		return nil
	}
	if d.Resolve == nil {
		return sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil)
	}
	in, err := d.Resolve(req)
	if err != nil {
		log.L().Info().Err(err).Msg("declined invitation")
		return sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil)
	}
	if from := req.From(); from != nil {
		if in.Contact == "" {
			in.Contact = from.Address.String()
		}
		in.RemoteTag = from.Params["tag"]
	}
	if callID := req.CallID(); callID != nil {
		in.CallID = callID.Value()
	}
	if in.Offer == nil {
		in.Offer = req.Body()
	}
	in.Invite = req
	sess, err := d.Svc.NewIncoming(ctx, in)
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldCallID, in.CallID).Msg("register incoming session")
		if errors.Is(err, ErrNotRecovered) {
			return sip.NewResponseFromRequest(req, 503, "Service Unavailable", nil)
		}
		return sip.NewResponseFromRequest(req, 400, "Bad Request", nil)
	}
	decision := Ring
	if d.Policy != nil {
		decision = d.Policy(sess)
	}
	switch decision {
	case DeclineIncoming:
		sess.Reject(ctx)
		return nil
	case AcceptIncoming:
		d.accept(ctx, sess)
		return nil
	default:
		return sess.response(180, "Ringing", nil)
	}
}

// accept opens media toward the remote offer and answers the invitation. The
// final response goes out through the session.
func (d *Dispatcher) accept(ctx context.Context, sess *Session) {
	var media ports.MediaChannel
	if d.OpenMedia != nil {
		m, err := d.OpenMedia(ctx, sess, sess.Path().RemoteContent())
		if err != nil {
			sess.HandleError(ctx, fmt.Errorf("open media: %w", err))
			return
		}
		media = m
	}
	if err := sess.Accept(ctx, media); err != nil && !errors.Is(err, ErrIllegalTransition) {
		sess.logger.Warn().Err(err).Msg("accept failed")
	}
}

// FinalResponseFor maps the reason an incoming invitation ended with to the
// final response sent to the remote.
func FinalResponseFor(reason model.ReasonCode) (int, string) {
	switch reason {
	case model.ReasonRejectedByUser:
		return 603, "Decline"
	case model.ReasonRejectedByRemote:
		return 487, "Request Terminated"
	case model.ReasonRejectedByTimeout:
		return 480, "Temporarily Unavailable"
	case model.ReasonRejectedBySystem:
		return 503, "Service Unavailable"
	case model.ReasonRejectedMaxSize:
		return 413, "Request Entity Too Large"
	case model.ReasonRejectedLowSpace:
		return 507, "Insufficient Storage"
	case model.ReasonRejectedMediaFailed:
		return 488, "Not Acceptable Here"
	default:
		return 500, "Server Internal Error"
	}
}

// RejectionReason maps a final failure status to a rejection reason code.
func RejectionReason(status int) model.ReasonCode {
	switch status {
	case 486, 600, 603:
		return model.ReasonRejectedByRemote
	case 408, 480, 487:
		return model.ReasonRejectedByTimeout
	case 413:
		return model.ReasonRejectedMaxSize
	case 415, 488, 606:
		return model.ReasonRejectedMediaFailed
	case 507:
		return model.ReasonRejectedLowSpace
	default:
		return model.ReasonRejectedBySystem
	}
}
