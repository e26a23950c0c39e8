// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dialog

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

var ErrNoSessionDescription = errors.New("body carries no session description")

// ParseBody splits a received invite payload into its session description
// and optional icon attachment. It is the inverse of the encoding BuildInvite uses.
func ParseBody(contentType string, raw []byte) (Body, error) {
	if contentType == "" {
		contentType = ContentTypeSDP
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Body{}, fmt.Errorf("parse content type: %w", err)
	}
	switch {
	case mediaType == ContentTypeSDP:
		if len(raw) == 0 {
			return Body{}, ErrNoSessionDescription
		}
		return Body{SDP: raw}, nil
	case strings.HasPrefix(mediaType, "multipart/"):
		return parseMultipart(raw, params["boundary"])
	default:
		return Body{}, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func parseMultipart(raw []byte, boundary string) (Body, error) {
	if boundary == "" {
		return Body{}, errors.New("multipart body without boundary")
	}
	var body Body
	r := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Body{}, fmt.Errorf("read multipart body: %w", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return Body{}, fmt.Errorf("read multipart body: %w", err)
		}
		ct := part.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(ct, ContentTypeSDP):
			body.SDP = data
		case part.Header.Get("Content-Disposition") == "icon":
			att := &Attachment{
				ContentType: ct,
				ContentID:   strings.Trim(part.Header.Get("Content-ID"), "<>"),
				Data:        data,
			}
			if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
				decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
				if err != nil {
					return Body{}, fmt.Errorf("decode icon: %w", err)
				}
				att.Data = decoded
			}
			body.Icon = att
		}
	}
	if len(body.SDP) == 0 {
		return Body{}, ErrNoSessionDescription
	}
	return body, nil
}
