// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"fmt"
)

const (
	BackendMemory   = "memory"
	BackendSqlite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// OpenStateStore creates an instrumented StateStore for backend. target is a
// file path for sqlite, a directory for badger and a DSN for postgres.
func OpenStateStore(ctx context.Context, backend, target string) (StateStore, error) {
	if backend == "" {
		backend = BackendSqlite
	}

	var (
		s   StateStore
		err error
	)
	switch backend {
	case BackendMemory:
		s = NewMemoryStore()
	case BackendSqlite:
		s, err = NewSqliteStore(target)
	case BackendBadger:
		s, err = OpenBadgerStore(target)
	case BackendPostgres:
		s, err = OpenPostgresStore(ctx, target)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(s, backend), nil
}
