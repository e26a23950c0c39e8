// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package msrpws

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMalformedFrame = errors.New("malformed msrp frame")

// chunk is one SEND request.
type chunk struct {
	TxID      string
	ToPath    string
	FromPath  string
	MessageID string
	Start     int64 // 1-based first byte
	End       int64
	Total     int64
	Last      bool
	Data      []byte
}

func (c chunk) encode() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "MSRP %s SEND\r\n", c.TxID)
	fmt.Fprintf(&b, "To-Path: %s\r\n", c.ToPath)
	fmt.Fprintf(&b, "From-Path: %s\r\n", c.FromPath)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", c.MessageID)
	fmt.Fprintf(&b, "Byte-Range: %d-%d/%d\r\n", c.Start, c.End, c.Total)
	b.WriteString("Content-Type: application/octet-stream\r\n\r\n")
	b.Write(c.Data)
	flag := "+"
	if c.Last {
		flag = "$"
	}
	fmt.Fprintf(&b, "\r\n-------%s%s\r\n", c.TxID, flag)
	return b.Bytes()
}

// response is the start line of a transaction response.
type response struct {
	TxID    string
	Status  int
	Comment string
}

// parseResponse reads the start line of a frame. Requests from the remote
// (REPORT and friends) are reported with ok == false.
func parseResponse(frame []byte) (response, bool, error) {
	line, _, _ := bytes.Cut(frame, []byte("\r\n"))
	fields := strings.SplitN(string(line), " ", 4)
	if len(fields) < 3 || fields[0] != "MSRP" {
		return response{}, false, errMalformedFrame
	}
	status, err := strconv.Atoi(fields[2])
	if err != nil {
		// method, not a status code
		return response{}, false, nil
	}
	r := response{TxID: fields[1], Status: status}
	if len(fields) == 4 {
		r.Comment = fields[3]
	}
	return r, true, nil
}
