// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/dgraph-io/badger/v4"
)

var sessionPrefix = []byte("sess:")

// BadgerStore keeps records as JSON under "sess:<contact>\x1f<id>".
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func sessionKey(contact, id string) []byte {
	key := make([]byte, 0, len(sessionPrefix)+len(contact)+1+len(id))
	key = append(key, sessionPrefix...)
	key = append(key, contact...)
	key = append(key, 0x1f)
	return append(key, id...)
}

func (s *BadgerStore) PutSession(ctx context.Context, rec *model.SessionRecord) error {
	if err := validatePair(rec.State, rec.Reason); err != nil {
		return err
	}
	cp := *rec
	cp.Reason = reasonOrNone(cp.Reason)
	buf, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(rec.Contact, rec.SessionID), buf)
	})
}

func (s *BadgerStore) GetSession(ctx context.Context, contact, id string) (*model.SessionRecord, error) {
	var out model.SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(contact, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) SetStateAndReason(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode, now time.Time) error {
	if err := validatePair(state, reason); err != nil {
		return err
	}
	key := sessionKey(contact, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var rec model.SessionRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.State = state
		rec.Reason = reasonOrNone(reason)
		rec.UpdatedAtUnix = now.Unix()
		buf, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, buf)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *BadgerStore) ScanByStates(ctx context.Context, states []model.State, fn RowFunc) error {
	want := make(map[model.State]struct{}, len(states))
	for _, st := range states {
		want[st] = struct{}{}
	}
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(sessionPrefix); it.ValidForPrefix(sessionPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec model.SessionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if _, ok := want[rec.State]; !ok {
				continue
			}
			if err := fn(&rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) DeleteSession(ctx context.Context, contact, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(contact, id))
	})
}

func (s *BadgerStore) DeleteTerminalBefore(ctx context.Context, t time.Time) (int, error) {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(sessionPrefix); it.ValidForPrefix(sessionPrefix); it.Next() {
			var rec model.SessionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.State.IsTerminal() && rec.UpdatedAtUnix < t.Unix() {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}
