// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sharing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ManuGH/rcsshare/internal/domain/session/dialog"
	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

var ErrUnsupportedOffer = errors.New("unsupported sharing offer")

var selectorField = regexp.MustCompile(`(name|type|size):("[^"]*"|\S+)`)

// ParseFileSelector reads a name/type/size descriptor.
func ParseFileSelector(s string) (model.Content, error) {
	var c model.Content
	for _, m := range selectorField.FindAllStringSubmatch(s, -1) {
		v := strings.Trim(m[2], `"`)
		switch m[1] {
		case "name":
			c.Name = v
		case "type":
			c.MimeType = v
		case "size":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return model.Content{}, fmt.Errorf("file-selector size %q: %w", v, err)
			}
			c.Size = n
		}
	}
	if c.Name == "" || c.MimeType == "" {
		return model.Content{}, fmt.Errorf("incomplete file-selector %q", s)
	}
	return c, nil
}

// ParseOffer builds the medium for a received invitation from its
// Accept-Contact feature tag and body. Only file and image offers are
// accepted; incoming video needs a player and is declined.
func ParseOffer(featureTag string, body dialog.Body, ep Endpoint) (Medium, model.Content, error) {
	var image bool
	switch featureTag {
	case FeatureTagFileTransfer, "":
	case FeatureTagImageShare:
		image = true
	default:
		return nil, model.Content{}, fmt.Errorf("%w: %s", ErrUnsupportedOffer, featureTag)
	}

	sd, err := parseAnswer(body.SDP)
	if err != nil {
		return nil, model.Content{}, err
	}
	md := findMedia(sd, "message")
	if md == nil {
		return nil, model.Content{}, ErrNoMedia
	}
	selector, ok := md.Attribute(AttrFileSelector)
	if !ok {
		return nil, model.Content{}, fmt.Errorf("%w: missing %s", ErrUnsupportedOffer, AttrFileSelector)
	}
	content, err := ParseFileSelector(selector)
	if err != nil {
		return nil, model.Content{}, err
	}
	if loc, ok := md.Attribute(AttrFileLocation); ok {
		content.URI = loc
	}

	var f *File
	if image {
		f = NewImage(content, ep, body.Icon)
	} else {
		f = NewFile(content, ep, body.Icon)
	}
	if id, ok := md.Attribute(AttrFileTransferID); ok && id != "" {
		f.TransferID = id
	}
	if path, ok := md.Attribute(AttrPath); ok {
		f.mu.Lock()
		f.remotePath = path
		f.mu.Unlock()
	}
	return f, content, nil
}
