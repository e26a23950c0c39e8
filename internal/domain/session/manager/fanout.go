// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"sync"

	"github.com/ManuGH/rcsshare/internal/domain/session/ports"
)

// Fanout delivers session events to its listeners synchronously, in
// registration order. A listener added late sees only later events.
type Fanout struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []fanoutEntry
}

type fanoutEntry struct {
	id uint64
	l  ports.Listener
}

// Add registers l and returns a function that removes it.
func (f *Fanout) Add(l ports.Listener) (remove func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, fanoutEntry{id: id, l: l})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *Fanout) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.listeners {
		if e.id == id {
			f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Notify delivers ev to a snapshot of the listeners. No lock is held while
// listeners run, so they may add or remove listeners.
func (f *Fanout) Notify(ev ports.Event) {
	f.mu.Lock()
	snapshot := make([]ports.Listener, len(f.listeners))
	for i, e := range f.listeners {
		snapshot[i] = e.l
	}
	f.mu.Unlock()

	for _, l := range snapshot {
		l.OnEvent(ev)
	}
}
