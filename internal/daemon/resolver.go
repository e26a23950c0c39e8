// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"fmt"

	"github.com/emiago/sipgo/sip"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	sessionmanager "github.com/ManuGH/rcsshare/internal/domain/session/manager"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
)

// incomingResolver builds the medium of a received invitation from its
// Accept-Contact tag and body. Offers it cannot serve are declined.
func incomingResolver(ep sharing.Endpoint) sessionmanager.IncomingResolver {
	return func(req *sip.Request) (sessionmanager.IncomingRequest, error) {
		body, err := dialog.ParseBody(headerValue(req, "Content-Type"), req.Body())
		if err != nil {
			return sessionmanager.IncomingRequest{}, fmt.Errorf("invite body: %w", err)
		}
		medium, content, err := sharing.ParseOffer(headerValue(req, dialog.HeaderAcceptContact), body, ep)
		if err != nil {
			return sessionmanager.IncomingRequest{}, err
		}
		return sessionmanager.IncomingRequest{
			ContributionID: headerValue(req, dialog.HeaderContributionID),
			Offer:          body.SDP,
			Medium:         medium,
			Content:        content,
		}, nil
	}
}

func headerValue(req *sip.Request, name string) string {
	if h := req.GetHeader(name); h != nil {
		return h.Value()
	}
	return ""
}
