// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"errors"
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	startedHost string
	startedPort int
	stops       int
	startErr    error
}

func (p *fakePlayer) Start(host string, port int) error {
	p.startedHost, p.startedPort = host, port
	return p.startErr
}

func (p *fakePlayer) Stop() error {
	p.stops++
	return nil
}

const videoAnswer = "v=0\r\n" +
	"o=- 3 3 IN IP4 10.0.0.2\r\n" +
	"s=-\r\n" +
	"c=IN IP4 10.0.0.2\r\n" +
	"t=0 0\r\n" +
	"m=video 40000 RTP/AVP 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=framesize:96 640-480\r\n" +
	"a=extmap:4 urn:3gpp:video-orientation\r\n" +
	"a=recvonly\r\n"

func TestVideo_DefaultsBeforeAnswer(t *testing.T) {
	v := NewVideo(Endpoint{Host: "10.0.0.1", Port: 30000}, Codec{}, nil)
	assert.Equal(t, -1, v.Width())
	assert.Equal(t, -1, v.Height())
	assert.Equal(t, 0, v.Orientation())
	assert.True(t, v.CapabilityRefreshOnError())
}

func TestVideo_InviteBody(t *testing.T) {
	v := NewVideo(Endpoint{Host: "10.0.0.1", Port: 30000}, Codec{Width: 1280, Height: 720}, nil)
	body, err := v.InviteBody(nil)
	require.NoError(t, err)
	assert.False(t, body.IsMultipart())

	var sd sdp.SessionDescription
	require.NoError(t, sd.Unmarshal(body.SDP))
	md := sd.MediaDescriptions[0]
	assert.Equal(t, "video", md.MediaName.Media)
	fs, ok := md.Attribute("framesize")
	require.True(t, ok)
	assert.Equal(t, "96 1280-720", fs)
}

func TestVideo_AnswerBodyIsReceiveOnly(t *testing.T) {
	v := NewVideo(Endpoint{Host: "10.0.0.1", Port: 30000}, Codec{Width: 640, Height: 480}, nil)
	raw, err := v.AnswerBody(nil)
	require.NoError(t, err)

	var sd sdp.SessionDescription
	require.NoError(t, sd.Unmarshal(raw))
	md := sd.MediaDescriptions[0]
	_, ok := md.Attribute("recvonly")
	assert.True(t, ok)
	fs, _ := md.Attribute("framesize")
	assert.Equal(t, "96 640-480", fs)
}

func TestVideo_OnAnswerPopulatesNegotiatedFields(t *testing.T) {
	player := &fakePlayer{}
	v := NewVideo(Endpoint{Host: "10.0.0.1", Port: 30000}, Codec{}, player)

	require.NoError(t, v.OnAnswer([]byte(videoAnswer)))
	assert.Equal(t, 640, v.Width())
	assert.Equal(t, 480, v.Height())
	assert.Equal(t, 4, v.Orientation())
	assert.Equal(t, "10.0.0.2", player.startedHost)
	assert.Equal(t, 40000, player.startedPort)

	require.NoError(t, v.Teardown())
	assert.Equal(t, 1, player.stops)
}

func TestVideo_OnAnswerErrors(t *testing.T) {
	v := NewVideo(Endpoint{Host: "10.0.0.1", Port: 30000}, Codec{}, &fakePlayer{startErr: errors.New("no surface")})
	err := v.OnAnswer([]byte(videoAnswer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no surface")

	noVideo := "v=0\r\no=- 1 1 IN IP4 10.0.0.2\r\ns=-\r\nt=0 0\r\nm=audio 4000 RTP/AVP 0\r\n"
	assert.ErrorIs(t, v.OnAnswer([]byte(noVideo)), ErrNoMedia)
}
