// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
)

const (
	FeatureTagFileTransfer = `*;+g.3gpp.iari-ref="urn%3Aurn-7%3A3gpp-application.ims.iari.rcs.ft"`
	FeatureTagImageShare   = `*;+g.3gpp.iari-ref="urn%3Aurn-7%3A3gpp-application.ims.iari.gsma-is"`

	AttrFileSelector    = "file-selector"
	AttrFileLocation    = "file-location"
	AttrFileTransferID  = "file-transfer-id"
	AttrFileDisposition = "file-disposition"
	AttrFileIcon        = "file-icon"
	AttrAcceptTypes     = "accept-types"
	AttrPath            = "path"
)

// File is an MSRP file transfer. Image sharing reuses it with a render disposition.
type File struct {
	Content    model.Content
	Icon       *dialog.Attachment
	Endpoint   Endpoint
	TransferID string

	kind        model.Medium
	featureTag  string
	disposition string

	mu         sync.RWMutex
	remotePath string
}

// NewFile returns a file-transfer medium for content.
func NewFile(content model.Content, ep Endpoint, icon *dialog.Attachment) *File {
	return &File{
		Content:     content,
		Icon:        icon,
		Endpoint:    ep,
		TransferID:  uuid.NewString(),
		kind:        model.MediumFileTransfer,
		featureTag:  FeatureTagFileTransfer,
		disposition: "attachment",
	}
}

// NewImage returns an image-sharing medium for content.
func NewImage(content model.Content, ep Endpoint, thumbnail *dialog.Attachment) *File {
	f := NewFile(content, ep, thumbnail)
	f.kind = model.MediumImageSharing
	f.featureTag = FeatureTagImageShare
	f.disposition = "render"
	return f
}

func (f *File) Kind() model.Medium             { return f.kind }
func (f *File) FeatureTag() string             { return f.featureTag }
func (f *File) CapabilityRefreshOnError() bool { return false }
func (f *File) Teardown() error                { return nil }

// FileSelector renders the name/type/size descriptor.
func (f *File) FileSelector() string {
	return fmt.Sprintf("name:\"%s\" type:%s size:%d", f.Content.Name, f.Content.MimeType, f.Content.Size)
}

// FileLocation returns the network location of the content. It is absent
// unless the source is retrievable over http(s).
func (f *File) FileLocation() (string, bool) {
	if !f.Content.IsNetworkRetrievable() {
		return "", false
	}
	return f.Content.URI, true
}

// RemotePath is the far-end MSRP path from the answer.
func (f *File) RemotePath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.remotePath
}

func (f *File) InviteBody(p *dialog.Path) (dialog.Body, error) {
	attrs := []sdp.Attribute{
		sdp.NewAttribute(AttrAcceptTypes, f.Content.MimeType),
		sdp.NewAttribute(AttrFileTransferID, f.TransferID),
		sdp.NewAttribute(AttrFileDisposition, f.disposition),
		sdp.NewAttribute(AttrFileSelector, f.FileSelector()),
	}
	if loc, ok := f.FileLocation(); ok {
		attrs = append(attrs, sdp.NewAttribute(AttrFileLocation, loc))
	}
	if f.Icon != nil && f.Icon.ContentID != "" {
		attrs = append(attrs, sdp.NewAttribute(AttrFileIcon, "cid:"+f.Icon.ContentID))
	}
	attrs = append(attrs,
		sdp.NewPropertyAttribute("sendonly"),
		sdp.NewAttribute(AttrPath, msrpPath(f.Endpoint, p.CallID)),
		sdp.NewAttribute("setup", "actpass"),
	)
	raw, err := f.describe(attrs)
	if err != nil {
		return dialog.Body{}, fmt.Errorf("marshal offer: %w", err)
	}
	return dialog.Body{SDP: raw, Icon: f.Icon}, nil
}

// AnswerBody accepts a received file offer: the local side receives and
// opens the MSRP connection.
func (f *File) AnswerBody(p *dialog.Path) ([]byte, error) {
	attrs := []sdp.Attribute{
		sdp.NewAttribute(AttrAcceptTypes, f.Content.MimeType),
		sdp.NewAttribute(AttrFileTransferID, f.TransferID),
		sdp.NewAttribute(AttrFileSelector, f.FileSelector()),
		sdp.NewPropertyAttribute("recvonly"),
		sdp.NewAttribute(AttrPath, msrpPath(f.Endpoint, p.CallID)),
		sdp.NewAttribute("setup", "active"),
	}
	raw, err := f.describe(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal answer: %w", err)
	}
	return raw, nil
}

func (f *File) describe(attrs []sdp.Attribute) ([]byte, error) {
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "message",
			Port:    sdp.RangedPort{Value: f.Endpoint.Port},
			Protos:  []string{"TCP", "MSRP"},
			Formats: []string{"*"},
		},
		Attributes: attrs,
	}
	return newOffer(f.Endpoint, md).Marshal()
}

func (f *File) OnAnswer(answer []byte) error {
	sd, err := parseAnswer(answer)
	if err != nil {
		return err
	}
	md := findMedia(sd, "message")
	if md == nil {
		return ErrNoMedia
	}
	path, ok := md.Attribute(AttrPath)
	if !ok || path == "" {
		return fmt.Errorf("%w: missing path", ErrInvalidAnswer)
	}
	f.mu.Lock()
	f.remotePath = path
	f.mu.Unlock()
	return nil
}

func (f *File) Attributes() map[string]string {
	attrs := map[string]string{
		AttrFileSelector:   f.FileSelector(),
		AttrFileTransferID: f.TransferID,
		"size":             strconv.FormatInt(f.Content.Size, 10),
	}
	if loc, ok := f.FileLocation(); ok {
		attrs[AttrFileLocation] = loc
	}
	return attrs
}
