// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"testing"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/emiago/sipgo/sip"
	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPath() *dialog.Path {
	return dialog.NewPath(
		sip.Uri{Scheme: "sip", User: "alice", Host: "10.0.0.1"},
		sip.Uri{Scheme: "sip", User: "bob", Host: "10.0.0.2"},
		"contrib", "",
	)
}

func TestFile_FileSelector(t *testing.T) {
	f := NewFile(model.Content{Name: "cat.jpg", MimeType: "image/jpeg", Size: 1234}, Endpoint{Host: "10.0.0.1", Port: 2855}, nil)
	assert.Equal(t, `name:"cat.jpg" type:image/jpeg size:1234`, f.FileSelector())
}

func TestFile_FileLocationOnlyForHTTP(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"https://cdn.example.org/cat.jpg", true},
		{"http://cdn.example.org/cat.jpg", true},
		{"httpx://cdn.example.org/cat.jpg", false},
		{"file:///sdcard/cat.jpg", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			f := NewFile(model.Content{Name: "cat.jpg", MimeType: "image/jpeg", URI: tt.uri}, Endpoint{Host: "10.0.0.1", Port: 2855}, nil)
			loc, ok := f.FileLocation()
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, tt.uri, loc)
			}
			_, inAttrs := f.Attributes()[AttrFileLocation]
			assert.Equal(t, tt.want, inAttrs)
		})
	}
}

func TestFile_InviteBodyAttributes(t *testing.T) {
	icon := &dialog.Attachment{ContentType: "image/jpeg", ContentID: "thumb1", Data: []byte{1, 2, 3}}
	f := NewFile(model.Content{Name: "doc.pdf", MimeType: "application/pdf", Size: 99, URI: "https://x.example/doc.pdf"},
		Endpoint{Host: "10.0.0.1", Port: 2855}, icon)

	p := testPath()
	body, err := f.InviteBody(p)
	require.NoError(t, err)
	assert.True(t, body.IsMultipart())

	var sd sdp.SessionDescription
	require.NoError(t, sd.Unmarshal(body.SDP))
	require.Len(t, sd.MediaDescriptions, 1)
	md := sd.MediaDescriptions[0]
	assert.Equal(t, "message", md.MediaName.Media)

	sel, ok := md.Attribute(AttrFileSelector)
	require.True(t, ok)
	assert.Equal(t, f.FileSelector(), sel)
	id, ok := md.Attribute(AttrFileTransferID)
	require.True(t, ok)
	assert.Equal(t, f.TransferID, id)
	loc, ok := md.Attribute(AttrFileLocation)
	require.True(t, ok)
	assert.Equal(t, "https://x.example/doc.pdf", loc)
	iconRef, ok := md.Attribute(AttrFileIcon)
	require.True(t, ok)
	assert.Equal(t, "cid:thumb1", iconRef)
	path, ok := md.Attribute(AttrPath)
	require.True(t, ok)
	assert.Contains(t, path, p.CallID)
}

func TestFile_AnswerBodyReceivesActively(t *testing.T) {
	f := NewFile(model.Content{Name: "doc.pdf", MimeType: "application/pdf", Size: 99, URI: "https://x.example/doc.pdf"},
		Endpoint{Host: "10.0.0.1", Port: 2855}, &dialog.Attachment{ContentType: "image/jpeg", ContentID: "thumb1", Data: []byte{1}})
	p := testPath()

	raw, err := f.AnswerBody(p)
	require.NoError(t, err)

	var sd sdp.SessionDescription
	require.NoError(t, sd.Unmarshal(raw))
	require.Len(t, sd.MediaDescriptions, 1)
	md := sd.MediaDescriptions[0]
	_, ok := md.Attribute("recvonly")
	assert.True(t, ok)
	_, ok = md.Attribute("sendonly")
	assert.False(t, ok)
	setup, _ := md.Attribute("setup")
	assert.Equal(t, "active", setup)
	_, ok = md.Attribute(AttrFileIcon)
	assert.False(t, ok, "icons belong to the offer")
	sel, _ := md.Attribute(AttrFileSelector)
	assert.Equal(t, f.FileSelector(), sel)
}

func TestFile_NoIconIsSinglePart(t *testing.T) {
	f := NewFile(model.Content{Name: "a.txt", MimeType: "text/plain", Size: 1}, Endpoint{Host: "10.0.0.1", Port: 2855}, nil)
	body, err := f.InviteBody(testPath())
	require.NoError(t, err)
	assert.False(t, body.IsMultipart())
}

func TestImage_UsesRenderDisposition(t *testing.T) {
	img := NewImage(model.Content{Name: "p.png", MimeType: "image/png", Size: 5}, Endpoint{Host: "10.0.0.1", Port: 2855}, nil)
	assert.Equal(t, model.MediumImageSharing, img.Kind())
	body, err := img.InviteBody(testPath())
	require.NoError(t, err)

	var sd sdp.SessionDescription
	require.NoError(t, sd.Unmarshal(body.SDP))
	disp, ok := sd.MediaDescriptions[0].Attribute(AttrFileDisposition)
	require.True(t, ok)
	assert.Equal(t, "render", disp)
}

func TestFile_OnAnswer(t *testing.T) {
	f := NewFile(model.Content{Name: "a.txt", MimeType: "text/plain"}, Endpoint{Host: "10.0.0.1", Port: 2855}, nil)
	answer := "v=0\r\n" +
		"o=- 2 2 IN IP4 10.0.0.2\r\n" +
		"s=-\r\n" +
		"c=IN IP4 10.0.0.2\r\n" +
		"t=0 0\r\n" +
		"m=message 2855 TCP/MSRP *\r\n" +
		"a=path:msrp://10.0.0.2:2855/abc;tcp\r\n"
	require.NoError(t, f.OnAnswer([]byte(answer)))
	assert.Equal(t, "msrp://10.0.0.2:2855/abc;tcp", f.RemotePath())

	assert.ErrorIs(t, f.OnAnswer(nil), ErrInvalidAnswer)
}
