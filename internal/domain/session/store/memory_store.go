// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

// MemoryStore is a process-local StateStore for tests and ephemeral setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[model.RecordKey]*model.SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[model.RecordKey]*model.SessionRecord)}
}

func (m *MemoryStore) PutSession(ctx context.Context, rec *model.SessionRecord) error {
	if err := validatePair(rec.State, rec.Reason); err != nil {
		return err
	}
	cp := *rec
	cp.Reason = reasonOrNone(cp.Reason)
	m.mu.Lock()
	m.sessions[rec.Key()] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, contact, id string) (*model.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[model.RecordKey{Contact: contact, SessionID: id}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) SetStateAndReason(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode, now time.Time) error {
	if err := validatePair(state, reason); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[model.RecordKey{Contact: contact, SessionID: id}]
	if !ok {
		return ErrNotFound
	}
	rec.State = state
	rec.Reason = reasonOrNone(reason)
	rec.UpdatedAtUnix = now.Unix()
	return nil
}

// ScanByStates snapshots matching records under the read lock and calls fn
// outside it, so fn may write back to the store.
func (m *MemoryStore) ScanByStates(ctx context.Context, states []model.State, fn RowFunc) error {
	want := make(map[model.State]struct{}, len(states))
	for _, s := range states {
		want[s] = struct{}{}
	}

	m.mu.RLock()
	matched := make([]model.SessionRecord, 0)
	for _, rec := range m.sessions {
		if _, ok := want[rec.State]; ok {
			matched = append(matched, *rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAtUnix != matched[j].CreatedAtUnix {
			return matched[i].CreatedAtUnix < matched[j].CreatedAtUnix
		}
		return matched[i].SessionID < matched[j].SessionID
	})
	for i := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&matched[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, contact, id string) error {
	m.mu.Lock()
	delete(m.sessions, model.RecordKey{Contact: contact, SessionID: id})
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteTerminalBefore(ctx context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, rec := range m.sessions {
		if rec.State.IsTerminal() && rec.UpdatedAtUnix < t.Unix() {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
