// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

func TestParseFileSelector(t *testing.T) {
	c, err := ParseFileSelector(`name:"my cat.jpg" type:image/jpeg size:1234`)
	require.NoError(t, err)
	assert.Equal(t, model.Content{Name: "my cat.jpg", MimeType: "image/jpeg", Size: 1234}, c)

	_, err = ParseFileSelector(`type:image/jpeg size:1`)
	assert.Error(t, err)
	_, err = ParseFileSelector(`name:"a" type:b/c size:big`)
	assert.Error(t, err)
}

func TestParseOffer_FromRemoteInvite(t *testing.T) {
	content := model.Content{Name: "doc.pdf", MimeType: "application/pdf", Size: 99, URI: "https://x.example/doc.pdf"}
	remote := NewFile(content, Endpoint{Host: "10.0.0.2", Port: 2855}, nil)
	body, err := remote.InviteBody(testPath())
	require.NoError(t, err)

	m, got, err := ParseOffer(FeatureTagFileTransfer, body, Endpoint{Host: "10.0.0.1", Port: 2856})
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, model.MediumFileTransfer, m.Kind())

	f := m.(*File)
	assert.Equal(t, remote.TransferID, f.TransferID)
	assert.Contains(t, f.RemotePath(), "msrp://10.0.0.2:2855/")
}

func TestParseOffer_Image(t *testing.T) {
	remote := NewImage(model.Content{Name: "p.png", MimeType: "image/png", Size: 5}, Endpoint{Host: "10.0.0.2", Port: 2855}, nil)
	body, err := remote.InviteBody(testPath())
	require.NoError(t, err)

	m, _, err := ParseOffer(FeatureTagImageShare, body, Endpoint{Host: "10.0.0.1", Port: 2856})
	require.NoError(t, err)
	assert.Equal(t, model.MediumImageSharing, m.Kind())
}

func TestParseOffer_Declines(t *testing.T) {
	_, _, err := ParseOffer(FeatureTagVideoShare, dialog.Body{SDP: []byte("v=0\r\n")}, Endpoint{})
	assert.ErrorIs(t, err, ErrUnsupportedOffer)

	_, _, err = ParseOffer(FeatureTagFileTransfer, dialog.Body{}, Endpoint{})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
}
