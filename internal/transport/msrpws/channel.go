// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package msrpws is the media channel of file and image sharing: MSRP chunks
// carried over a websocket (RFC 7977).
package msrpws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/sdp/v3"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/domain/session/manager"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/domain/session/sharing"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/metrics"
)

// Subprotocol is the websocket subprotocol for MSRP.
const Subprotocol = "msrp"

const (
	channelLabel     = "msrp"
	defaultChunkSize = 2048
	writeTimeout     = 10 * time.Second
)

var (
	ErrClosed       = errors.New("media channel closed")
	ErrNoRemotePath = errors.New("answer carries no msrp path")
)

// Sink receives transfer outcomes. *manager.Session implements it.
type Sink interface {
	OnProgress(current, total int64)
	HandleTransferError(ctx context.Context, msgID string, err error, chunkType string)
}

// Channel is one MSRP session over a websocket.
type Channel struct {
	conn      *websocket.Conn
	sink      Sink
	fromPath  string
	toPath    string
	chunkSize int
	logger    zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]pendingChunk

	closeOnce sync.Once
	done      chan struct{}
}

type pendingChunk struct {
	messageID string
	end       int64
	total     int64
}

// Opener dials media channels for accepted sessions.
type Opener struct {
	Dialer    *websocket.Dialer
	ChunkSize int
}

// Open connects to the remote MSRP path advertised in answer and starts the
// read loop. It has the shape of manager.MediaOpener.
func (o *Opener) Open(ctx context.Context, sess *manager.Session, answer []byte) (ports.MediaChannel, error) {
	toPath, err := RemotePath(answer)
	if err != nil {
		return nil, err
	}
	target, err := DialURL(toPath)
	if err != nil {
		return nil, err
	}
	dialer := o.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	d := *dialer
	d.Subprotocols = []string{Subprotocol}

	conn, resp, err := d.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		metrics.TransportConnects.WithLabelValues(channelLabel, "error").Inc()
		return nil, fmt.Errorf("dial media %s: %w", target, err)
	}
	metrics.TransportConnects.WithLabelValues(channelLabel, "ok").Inc()

	from := fmt.Sprintf("msrp://%s/%s;ws", conn.LocalAddr().String(), sess.Path().CallID)
	ch := newChannel(conn, sess, from, toPath, o.ChunkSize)
	ch.logger = ch.logger.With().Str(log.FieldSessionID, sess.ID()).Logger()
	go ch.readLoop()
	return ch, nil
}

func newChannel(conn *websocket.Conn, sink Sink, fromPath, toPath string, chunkSize int) *Channel {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Channel{
		conn:      conn,
		sink:      sink,
		fromPath:  fromPath,
		toPath:    toPath,
		chunkSize: chunkSize,
		logger:    log.WithComponent("msrpws"),
		pending:   make(map[string]pendingChunk),
		done:      make(chan struct{}),
	}
}

// RemotePath extracts the MSRP path from the message media of an SDP answer.
func RemotePath(answer []byte) (string, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(answer); err != nil {
		return "", fmt.Errorf("%w: %v", sharing.ErrInvalidAnswer, err)
	}
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "message" {
			continue
		}
		if p, ok := md.Attribute(sharing.AttrPath); ok && p != "" {
			// a path list is space separated; the last hop is the peer
			hops := strings.Fields(p)
			return hops[len(hops)-1], nil
		}
	}
	return "", ErrNoRemotePath
}

// DialURL turns an msrp(s) path URI into the websocket URL to dial.
func DialURL(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse msrp path: %w", err)
	}
	switch u.Scheme {
	case "msrp":
		u.Scheme = "ws"
	case "msrps":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported msrp scheme %q", u.Scheme)
	}
	// drop the session id and ";transport" suffix
	u.Path = "/"
	u.RawPath = ""
	return u.String(), nil
}

// Send streams r as one MSRP message of total bytes. Acknowledgements and
// failures are reported to the sink as they arrive.
func (c *Channel) Send(ctx context.Context, r io.Reader, total int64) (string, error) {
	msgID := uuid.NewString()
	buf := make([]byte, c.chunkSize)
	var sent int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			last := sent+int64(n) >= total
			if werr := c.sendChunk(ctx, msgID, buf[:n], sent, total, last); werr != nil {
				return msgID, werr
			}
			sent += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return msgID, nil
		}
		if err != nil {
			return msgID, fmt.Errorf("read content: %w", err)
		}
	}
}

func (c *Channel) sendChunk(ctx context.Context, msgID string, data []byte, offset, total int64, last bool) error {
	txID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ck := chunk{
		TxID:      txID,
		ToPath:    c.toPath,
		FromPath:  c.fromPath,
		MessageID: msgID,
		Start:     offset + 1,
		End:       offset + int64(len(data)),
		Total:     total,
		Last:      last,
		Data:      data,
	}
	c.mu.Lock()
	c.pending[txID] = pendingChunk{messageID: msgID, end: ck.End, total: total}
	c.mu.Unlock()

	if err := c.write(ctx, ck.encode()); err != nil {
		c.mu.Lock()
		delete(c.pending, txID)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Channel) write(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		metrics.IncTransportError(channelLabel, "write")
		return fmt.Errorf("write msrp chunk: %w", err)
	}
	metrics.IncFrame(channelLabel, "out")
	return nil
}

func (c *Channel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			metrics.IncTransportError(channelLabel, "read")
			c.sink.HandleTransferError(context.Background(), c.anyPending(), fmt.Errorf("media connection lost: %w", err), "")
			_ = c.Close()
			return
		}
		metrics.IncFrame(channelLabel, "in")
		c.handleFrame(data)
	}
}

func (c *Channel) handleFrame(data []byte) {
	res, ok, err := parseResponse(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("discarding media frame")
		return
	}
	if !ok {
		return
	}
	c.mu.Lock()
	p, known := c.pending[res.TxID]
	delete(c.pending, res.TxID)
	c.mu.Unlock()
	if !known {
		return
	}
	if res.Status != 200 {
		err := fmt.Errorf("msrp %d %s", res.Status, res.Comment)
		c.sink.HandleTransferError(context.Background(), p.messageID, err, "SEND")
		return
	}
	c.sink.OnProgress(p.end, p.total)
}

func (c *Channel) anyPending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		return p.messageID
	}
	return ""
}

// Close is idempotent.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
