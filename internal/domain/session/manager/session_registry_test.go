// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryCloseAndWaitDrainsWorkers(t *testing.T) {
	reg := NewRegistry()

	done := make(chan struct{})
	if ok := reg.Go(func() {
		<-done
	}); !ok {
		t.Fatal("expected worker to start")
	}

	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.CloseAndWait(ctx); err != nil {
		t.Fatalf("expected drain success, got %v", err)
	}
}

func TestSessionRegistryCloseAndWaitTimeout(t *testing.T) {
	reg := NewRegistry()

	block := make(chan struct{})
	if ok := reg.Go(func() {
		<-block
	}); !ok {
		t.Fatal("expected worker to start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := reg.CloseAndWait(ctx); err == nil {
		t.Fatal("expected timeout error")
	}
	close(block)
}

func TestSessionRegistryRejectsNewWorkersAfterClose(t *testing.T) {
	reg := NewRegistry()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.CloseAndWait(ctx); err != nil {
		t.Fatalf("expected close on empty registry to succeed, got %v", err)
	}

	if ok := reg.Go(func() {}); ok {
		t.Fatal("expected registry to reject workers after close")
	}
	assert.ErrorIs(t, reg.Add(&Session{id: "late"}), ErrRegistryClosed)
}

func TestSessionRegistryAddRemove(t *testing.T) {
	reg := NewRegistry()
	a := &Session{id: "a"}

	require.NoError(t, reg.Add(a))
	assert.ErrorIs(t, reg.Add(&Session{id: "a"}), ErrDuplicateSession)

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	// a different session with the same id is not removed
	assert.False(t, reg.Remove(&Session{id: "a"}))
	assert.True(t, reg.Remove(a))
	assert.False(t, reg.Remove(a))
	assert.Zero(t, reg.Len())
}

func TestSessionRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	const n = 64

	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = &Session{id: fmt.Sprintf("s-%02d", i)}
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_ = reg.Add(s)
			_ = reg.List()
			_, _ = reg.Get(s.ID())
		}(s)
	}
	wg.Wait()
	assert.Equal(t, n, reg.Len())

	list := reg.List()
	require.Len(t, list, n)
	assert.Equal(t, "s-00", list[0].ID())

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			reg.Remove(s)
		}(s)
	}
	wg.Wait()
	assert.Zero(t, reg.Len())
}
