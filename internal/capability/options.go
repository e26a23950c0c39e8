// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capability

import (
	"context"
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
)

// OptionsQuerier asks a contact for its capabilities with an OPTIONS request
// advertising the sharing services this endpoint supports.
type OptionsQuerier struct {
	Transport ports.SignalingTransport
	Local     sip.Uri
	Domain    string
}

func (q *OptionsQuerier) Query(ctx context.Context, contact string) error {
	req, err := q.Build(contact)
	if err != nil {
		return err
	}
	return q.Transport.Send(ctx, req)
}

// Build assembles the OPTIONS request for contact.
func (q *OptionsQuerier) Build(contact string) (*sip.Request, error) {
	remote, err := dialog.ContactURI(contact, q.Domain)
	if err != nil {
		return nil, err
	}
	req := sip.NewRequest(sip.OPTIONS, remote)

	req.AppendHeader(&sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "WS",
		Host:            q.Local.Host,
		Port:            q.Local.Port,
		Params:          sip.HeaderParams{"branch": sip.GenerateBranch()},
	})
	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	req.AppendHeader(&sip.FromHeader{
		Address: q.Local,
		Params:  sip.HeaderParams{"tag": strings.ReplaceAll(uuid.NewString(), "-", "")[:16]},
	})
	req.AppendHeader(&sip.ToHeader{Address: remote, Params: sip.HeaderParams{}})
	req.AppendHeader(sip.NewHeader("Call-ID", uuid.NewString()))
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.OPTIONS})
	req.AppendHeader(&sip.ContactHeader{Address: q.Local})
	req.AppendHeader(sip.NewHeader(dialog.HeaderAcceptContact, strings.Join([]string{
		sharing.FeatureTagFileTransfer,
		sharing.FeatureTagImageShare,
		sharing.FeatureTagVideoShare,
	}, ",")))
	req.AppendHeader(sip.NewHeader("Content-Length", "0"))
	return req, nil
}
