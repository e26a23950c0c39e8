// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capability refreshes the capabilities of remote contacts after
// session errors. Requests are queued, de-duplicated per contact and paced.
package capability

import (
	"context"
	"sync"
	"time"
)

// Recent remembers contacts whose capabilities were requested lately.
type Recent interface {
	// MarkIfAbsent records contact for ttl and reports whether it was absent.
	MarkIfAbsent(ctx context.Context, contact string, ttl time.Duration) (bool, error)
	// Forget drops contact so the next request goes through.
	Forget(ctx context.Context, contact string) error
	Stats() Stats
}

// Stats holds de-duplication counters.
type Stats struct {
	Hits        int64 // requests suppressed because the contact was recent
	Misses      int64 // requests that went through
	Evictions   int64 // expired entries cleaned up
	CurrentSize int
}

// MemoryRecent is the in-process Recent.
type MemoryRecent struct {
	mu      sync.Mutex
	entries map[string]time.Time
	stats   Stats
	now     func() time.Time
	janitor *janitor
}

// NewMemoryRecent creates an in-memory Recent. A positive cleanupInterval
// starts a janitor that removes expired entries; stop it with Stop.
func NewMemoryRecent(cleanupInterval time.Duration) *MemoryRecent {
	m := &MemoryRecent{entries: make(map[string]time.Time), now: time.Now}
	if cleanupInterval > 0 {
		m.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go m.janitor.run(m)
	}
	return m
}

func (c *MemoryRecent) MarkIfAbsent(_ context.Context, contact string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.entries[contact]; ok && now.Before(exp) {
		c.stats.Hits++
		return false, nil
	}
	c.entries[contact] = now.Add(ttl)
	c.stats.Misses++
	return true, nil
}

func (c *MemoryRecent) Forget(_ context.Context, contact string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, contact)
	return nil
}

func (c *MemoryRecent) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes all expired entries and returns how many were removed.
func (c *MemoryRecent) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for contact, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, contact)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Stop stops the background cleanup goroutine.
func (m *MemoryRecent) Stop() {
	if m.janitor != nil {
		m.janitor.once.Do(func() { close(m.janitor.stop) })
	}
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

func (j *janitor) run(c *MemoryRecent) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}
