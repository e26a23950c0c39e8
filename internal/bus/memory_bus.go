// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus is the in-process pub/sub that mirrors session events to
// observers outside the session, such as the event stream endpoint.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
	"github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/metrics"
)

const (
	TopicSessionState = "session.state"
	TopicSessionError = "session.error"
	TopicProgress     = "session.progress"
)

// MemoryBus is an in-memory pub/sub. It is not durable; delivery to a slow
// subscriber blocks the publisher until the publish context is done.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan interface{}
}

const (
	dropLogEvery     = 100
	subscriberBuffer = 64
)

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan interface{})}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg interface{}) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 1 {
				log.L().Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	metrics.IncBusPublished(topic)
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	ch := make(chan interface{}, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan interface{}
	once  sync.Once
}

func (s *memSub) C() <-chan interface{} {
	return s.ch
}

// Close removes the subscription and closes its channel. The channel is
// closed under the bus lock so no publisher can send on it afterwards.
func (s *memSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s.ch {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
	})
	return nil
}

// Ensure compliance
var _ ports.Bus = (*MemoryBus)(nil)
