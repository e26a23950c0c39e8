// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"fmt"
	"strings"
	"time"

	"github.com/pion/sdp/v3"
)

func newOffer(ep Endpoint, media ...*sdp.MediaDescription) *sdp.SessionDescription {
	id := uint64(time.Now().UnixNano())
	return &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      id,
			SessionVersion: id,
			NetworkType:    "IN",
			AddressType:    addressType(ep.Host),
			UnicastAddress: ep.Host,
		},
		SessionName: "-",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addressType(ep.Host),
			Address:     &sdp.Address{Address: ep.Host},
		},
		TimeDescriptions:  []sdp.TimeDescription{{Timing: sdp.Timing{}}},
		MediaDescriptions: media,
	}
}

func addressType(host string) string {
	if strings.Contains(host, ":") {
		return "IP6"
	}
	return "IP4"
}

func msrpPath(ep Endpoint, id string) string {
	return fmt.Sprintf("msrp://%s:%d/%s;tcp", ep.Host, ep.Port, id)
}

func parseAnswer(answer []byte) (*sdp.SessionDescription, error) {
	if len(answer) == 0 {
		return nil, ErrInvalidAnswer
	}
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	return &sd, nil
}

func findMedia(sd *sdp.SessionDescription, media string) *sdp.MediaDescription {
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media == media {
			return md
		}
	}
	return nil
}
