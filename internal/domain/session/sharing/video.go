// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/pion/sdp/v3"
)

const (
	FeatureTagVideoShare = `+g.3gpp.cs-voice;+g.3gpp.iari-ref="urn%3Aurn-7%3A3gpp-application.ims.iari.gsma-vs"`

	// VideoOrientationURI is the RTP header extension carrying CVO.
	VideoOrientationURI = "urn:3gpp:video-orientation"

	defaultPayloadType = 96
	unknownDimension   = -1
)

// Player renders or produces the video stream of a session.
type Player interface {
	Start(remoteHost string, remotePort int) error
	Stop() error
}

// Codec describes the offered video encoding.
type Codec struct {
	Name      string
	ClockRate int
	Width     int
	Height    int
}

// Video is an RTP video stream. Width, height and orientation stay unset
// until the answer is applied.
type Video struct {
	Endpoint Endpoint
	Codec    Codec

	mu            sync.RWMutex
	player        Player
	orientationID int
	width         int
	height        int
	remoteHost    string
	remotePort    int
}

// NewVideo returns a video-streaming medium using player.
func NewVideo(ep Endpoint, codec Codec, player Player) *Video {
	if codec.Name == "" {
		codec.Name = "H264"
	}
	if codec.ClockRate == 0 {
		codec.ClockRate = 90000
	}
	return &Video{
		Endpoint: ep,
		Codec:    codec,
		player:   player,
		width:    unknownDimension,
		height:   unknownDimension,
	}
}

func (v *Video) Kind() model.Medium             { return model.MediumVideoStreaming }
func (v *Video) FeatureTag() string             { return FeatureTagVideoShare }
func (v *Video) CapabilityRefreshOnError() bool { return true }

// Player returns the attached player handle.
func (v *Video) Player() Player {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.player
}

// SetPlayer replaces the player handle.
func (v *Video) SetPlayer(p Player) {
	v.mu.Lock()
	v.player = p
	v.mu.Unlock()
}

// Orientation returns the negotiated orientation extension id, 0 when none.
func (v *Video) Orientation() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.orientationID
}

// Width returns the negotiated width or -1.
func (v *Video) Width() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width
}

// Height returns the negotiated height or -1.
func (v *Video) Height() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.height
}

func (v *Video) InviteBody(_ *dialog.Path) (dialog.Body, error) {
	raw, err := v.describe("sendonly")
	if err != nil {
		return dialog.Body{}, fmt.Errorf("marshal offer: %w", err)
	}
	return dialog.Body{SDP: raw}, nil
}

// AnswerBody accepts a received video offer for display.
func (v *Video) AnswerBody(_ *dialog.Path) ([]byte, error) {
	raw, err := v.describe("recvonly")
	if err != nil {
		return nil, fmt.Errorf("marshal answer: %w", err)
	}
	return raw, nil
}

func (v *Video) describe(direction string) ([]byte, error) {
	pt := strconv.Itoa(defaultPayloadType)
	attrs := []sdp.Attribute{
		sdp.NewAttribute("rtpmap", fmt.Sprintf("%s %s/%d", pt, v.Codec.Name, v.Codec.ClockRate)),
	}
	if v.Codec.Width > 0 && v.Codec.Height > 0 {
		attrs = append(attrs, sdp.NewAttribute("framesize", fmt.Sprintf("%s %d-%d", pt, v.Codec.Width, v.Codec.Height)))
	}
	attrs = append(attrs,
		sdp.NewAttribute("extmap", "7 "+VideoOrientationURI),
		sdp.NewPropertyAttribute(direction),
	)
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "video",
			Port:    sdp.RangedPort{Value: v.Endpoint.Port},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{pt},
		},
		Attributes: attrs,
	}
	return newOffer(v.Endpoint, md).Marshal()
}

// OnAnswer reads orientation and frame size from the answer and starts the player.
func (v *Video) OnAnswer(answer []byte) error {
	sd, err := parseAnswer(answer)
	if err != nil {
		return err
	}
	md := findMedia(sd, "video")
	if md == nil {
		return ErrNoMedia
	}

	orientation := 0
	width, height := unknownDimension, unknownDimension
	for _, a := range md.Attributes {
		switch a.Key {
		case "extmap":
			fields := strings.Fields(a.Value)
			if len(fields) == 2 && fields[1] == VideoOrientationURI {
				id, err := strconv.Atoi(strings.SplitN(fields[0], "/", 2)[0])
				if err == nil {
					orientation = id
				}
			}
		case "framesize":
			fields := strings.Fields(a.Value)
			if len(fields) != 2 {
				continue
			}
			dims := strings.SplitN(fields[1], "-", 2)
			if len(dims) != 2 {
				continue
			}
			w, errW := strconv.Atoi(dims[0])
			h, errH := strconv.Atoi(dims[1])
			if errW == nil && errH == nil {
				width, height = w, h
			}
		}
	}

	host := ""
	if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
		host = md.ConnectionInformation.Address.Address
	} else if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		host = sd.ConnectionInformation.Address.Address
	}
	port := md.MediaName.Port.Value

	v.mu.Lock()
	v.orientationID = orientation
	v.width, v.height = width, height
	v.remoteHost, v.remotePort = host, port
	player := v.player
	v.mu.Unlock()

	if player != nil {
		if err := player.Start(host, port); err != nil {
			return fmt.Errorf("start player: %w", err)
		}
	}
	return nil
}

func (v *Video) Attributes() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return map[string]string{
		"codec":       v.Codec.Name,
		"orientation": strconv.Itoa(v.orientationID),
		"width":       strconv.Itoa(v.width),
		"height":      strconv.Itoa(v.height),
	}
}

// Teardown stops the player.
func (v *Video) Teardown() error {
	p := v.Player()
	if p == nil {
		return nil
	}
	return p.Stop()
}
