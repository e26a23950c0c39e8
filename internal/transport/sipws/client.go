// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sipws carries SIP signaling over a websocket connection (RFC 7118).
package sipws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/metrics"
)

// Subprotocol is the websocket subprotocol for SIP.
const Subprotocol = "sip"

const (
	channel             = "sip"
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

var ErrClosed = errors.New("signaling connection closed")

// Handler receives inbound messages. A non-nil response from HandleRequest
// is written back on the same connection.
type Handler interface {
	HandleRequest(ctx context.Context, req *sip.Request) *sip.Response
	HandleResponse(ctx context.Context, res *sip.Response)
}

// Config configures the signaling connection.
type Config struct {
	URL          string        `yaml:"url" validate:"required,url"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
	Header       http.Header   `yaml:"-"`
}

// Client is a SIP-over-websocket connection. Writes are serialised; reads
// happen on the goroutine running Run.
type Client struct {
	conf    Config
	conn    *websocket.Conn
	handler Handler
	parser  *sip.Parser
	logger  zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the signaling connection.
func Dial(ctx context.Context, conf Config, h Handler) (*Client, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, conf.URL, conf.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		metrics.TransportConnects.WithLabelValues(channel, "error").Inc()
		return nil, fmt.Errorf("dial signaling %s: %w", conf.URL, err)
	}
	if conn.Subprotocol() != Subprotocol {
		_ = conn.Close()
		metrics.TransportConnects.WithLabelValues(channel, "error").Inc()
		return nil, fmt.Errorf("dial signaling %s: server did not accept subprotocol %q", conf.URL, Subprotocol)
	}
	metrics.TransportConnects.WithLabelValues(channel, "ok").Inc()
	return newClient(conn, conf, h), nil
}

func newClient(conn *websocket.Conn, conf Config, h Handler) *Client {
	if conf.WriteTimeout <= 0 {
		conf.WriteTimeout = defaultWriteTimeout
	}
	if conf.PingInterval <= 0 {
		conf.PingInterval = defaultPingInterval
	}
	return &Client{
		conf:    conf,
		conn:    conn,
		handler: h,
		parser:  sip.NewParser(),
		logger:  log.WithComponent("sipws").With().Str(log.FieldURL, conf.URL).Logger(),
		done:    make(chan struct{}),
	}
}

// Send writes req as one text frame.
func (c *Client) Send(ctx context.Context, req *sip.Request) error {
	return c.write(ctx, req.String())
}

// Respond writes res as one text frame. Final responses that are not produced
// synchronously by the Handler go through here.
func (c *Client) Respond(ctx context.Context, res *sip.Response) error {
	return c.write(ctx, res.String())
}

func (c *Client) write(ctx context.Context, msg string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(c.conf.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		metrics.IncTransportError(channel, "write")
		return fmt.Errorf("write signaling frame: %w", err)
	}
	metrics.IncFrame(channel, "out")
	return nil
}

// Run reads frames until ctx is done or the connection fails. It closes the
// connection on return.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()

	go c.keepalive(ctx)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			metrics.IncTransportError(channel, "read")
			return fmt.Errorf("read signaling frame: %w", err)
		}
		metrics.IncFrame(channel, "in")
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	msg, err := c.parser.ParseSIP(data)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("discarding unparsable signaling frame")
		return
	}
	switch m := msg.(type) {
	case *sip.Request:
		res := c.handler.HandleRequest(ctx, m)
		if res == nil {
			return
		}
		if err := c.write(ctx, res.String()); err != nil {
			c.logger.Warn().Err(err).Str("method", string(m.Method)).Msg("send response failed")
		}
	case *sip.Response:
		c.handler.HandleResponse(ctx, m)
	}
}

func (c *Client) keepalive(ctx context.Context) {
	ticker := time.NewTicker(c.conf.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.conf.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
			}
		}
	}
}

// Close ends the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

var _ ports.SignalingTransport = (*Client)(nil)
