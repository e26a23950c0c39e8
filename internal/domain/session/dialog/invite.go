// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dialog

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"

	"github.com/emiago/sipgo/sip"
)

const (
	// BoundaryTag separates the session description from the attachment.
	BoundaryTag = "boundary1"

	ContentTypeSDP       = "application/sdp"
	HeaderContributionID = "Contribution-ID"
	HeaderAcceptContact  = "Accept-Contact"
)

// Attachment is auxiliary content sent with the offer (file icon, thumbnail).
type Attachment struct {
	ContentType string
	ContentID   string
	Data        []byte
}

// Body is the invite payload: a session description plus optional attachment.
type Body struct {
	SDP  []byte
	Icon *Attachment
}

// IsMultipart reports whether the body needs a multipart envelope.
func (b Body) IsMultipart() bool {
	return b.Icon != nil
}

// BuildInvite assembles the INVITE for p. A body with an attachment is sent as
// multipart/mixed with BoundaryTag; otherwise the session description is sent
// alone. Building does not record the offer on p; the caller does that once
// the invite is actually sent.
func BuildInvite(p *Path, body Body) (*sip.Request, error) {
	if len(body.SDP) == 0 {
		return nil, &SignalingError{Op: "build invite", Err: ErrEmptyContent}
	}
	if p.Remote.Host == "" || p.Local.Host == "" {
		return nil, &SignalingError{Op: "build invite", Err: ErrInvalidAddress}
	}

	payload, contentType := body.SDP, ContentTypeSDP
	if body.IsMultipart() {
		var err error
		payload, err = encodeMultipart(body)
		if err != nil {
			return nil, &SignalingError{Op: "build invite", Err: err}
		}
		contentType = fmt.Sprintf("multipart/mixed;boundary=%q", BoundaryTag)
	}

	req := sip.NewRequest(sip.INVITE, p.Remote)
	appendDialogHeaders(req, p, sip.INVITE, "")
	req.AppendHeader(sip.NewHeader(HeaderContributionID, p.ContributionID))
	if p.FeatureTag != "" {
		req.AppendHeader(sip.NewHeader(HeaderAcceptContact, p.FeatureTag))
	}
	req.SetBody(payload)
	req.AppendHeader(sip.NewHeader("Content-Type", contentType))
	req.AppendHeader(sip.NewHeader("Content-Length", strconv.Itoa(len(payload))))
	return req, nil
}

// BuildBye assembles an in-dialog BYE.
func BuildBye(p *Path) *sip.Request {
	req := sip.NewRequest(sip.BYE, p.Remote)
	appendDialogHeaders(req, p, sip.BYE, p.RemoteTag())
	req.AppendHeader(sip.NewHeader("Content-Length", "0"))
	return req
}

func appendDialogHeaders(req *sip.Request, p *Path, method sip.RequestMethod, remoteTag string) {
	req.AppendHeader(&sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "WS",
		Host:            p.Local.Host,
		Port:            p.Local.Port,
		Params:          sip.HeaderParams{"branch": sip.GenerateBranch()},
	})
	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	req.AppendHeader(&sip.FromHeader{
		Address: p.Local,
		Params:  sip.HeaderParams{"tag": p.LocalTag},
	})
	to := &sip.ToHeader{Address: p.Remote, Params: sip.HeaderParams{}}
	if remoteTag != "" {
		to.Params["tag"] = remoteTag
	}
	req.AppendHeader(to)
	req.AppendHeader(sip.NewHeader("Call-ID", p.CallID))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: p.nextCSeq(), MethodName: method})
	req.AppendHeader(&sip.ContactHeader{Address: p.Local})
}

func encodeMultipart(body Body) ([]byte, error) {
	icon := body.Icon
	if icon.ContentType == "" || len(icon.Data) == 0 {
		return nil, ErrInvalidAttachment
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(BoundaryTag); err != nil {
		return nil, err
	}

	sdpPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":   {ContentTypeSDP},
		"Content-Length": {strconv.Itoa(len(body.SDP))},
	})
	if err != nil {
		return nil, err
	}
	if _, err := sdpPart.Write(body.SDP); err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(icon.Data)
	header := textproto.MIMEHeader{
		"Content-Type":              {icon.ContentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {"icon"},
		"Content-Length":            {strconv.Itoa(len(encoded))},
	}
	if icon.ContentID != "" {
		header.Set("Content-ID", "<"+icon.ContentID+">")
	}
	iconPart, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := iconPart.Write([]byte(encoded)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
