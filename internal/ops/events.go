// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ops

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/bus"
	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/metrics"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

var defaultTopics = []string{bus.TopicSessionState, bus.TopicSessionError, bus.TopicProgress}

// EventStream serves session events from the bus over a websocket. Clients
// pick topics with repeated ?topic= parameters; the default is all of them.
type EventStream struct {
	Bus      ports.Bus
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	base    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closed  bool
	clients sync.WaitGroup
}

func NewEventStream(b ports.Bus) *EventStream {
	base, stop := context.WithCancel(context.Background())
	return &EventStream{
		Bus:  b,
		base: base,
		stop: stop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
		logger: log.WithComponent("events"),
	}
}

// sameOrigin accepts non-browser clients and same-host browser pages.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (e *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics := r.URL.Query()["topic"]
	if len(topics) == 0 {
		topics = defaultTopics
	}
	for _, t := range topics {
		if !knownTopic(t) {
			http.Error(w, "unknown topic "+t, http.StatusBadRequest)
			return
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	e.clients.Add(1)
	e.mu.Unlock()
	defer e.clients.Done()

	// Hijacked connections outlive the server's request tracking; streams end on Close.
	ctx, cancel := context.WithCancel(e.base)
	defer cancel()

	// Subscribe before the handshake so nothing published after it is missed.
	merged := make(chan interface{}, 64)
	for _, t := range topics {
		sub, err := e.Bus.Subscribe(ctx, t)
		if err != nil {
			e.logger.Warn().Err(err).Str("topic", t).Msg("event stream subscribe failed")
			http.Error(w, "subscribe failed", http.StatusServiceUnavailable)
			return
		}
		defer func() { _ = sub.Close() }()
		go forward(ctx, sub, merged)
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		e.logger.Debug().Err(err).Msg("event stream upgrade failed")
		return
	}
	metrics.EventStreamClients.Inc()
	defer metrics.EventStreamClients.Dec()

	// Reader: the client sends nothing we act on; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	e.logger.Debug().Strs("topics", topics).Str("remote_addr", r.RemoteAddr).Msg("event stream client connected")
	e.pump(ctx, conn, merged)
	_ = conn.Close()
}

func (e *EventStream) pump(ctx context.Context, conn *websocket.Conn, in <-chan interface{}) {
	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case msg := <-in:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				metrics.IncTransportError("events", "write")
				return
			}
			metrics.IncFrame("events", "out")
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// forward copies a subscription into out until ctx ends or the subscription closes.
func forward(ctx context.Context, sub ports.Subscription, out chan<- interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func knownTopic(t string) bool {
	for _, d := range defaultTopics {
		if t == d {
			return true
		}
	}
	return false
}

// Close ends every open stream and waits for the handlers to return.
func (e *EventStream) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.stop()
	done := make(chan struct{})
	go func() {
		e.clients.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
