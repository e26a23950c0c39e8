// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	sq "github.com/Masterminds/squirrel"
)

const sessionsTable = "sharing_sessions"

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sharing_sessions (
	contact TEXT NOT NULL,
	session_id TEXT NOT NULL,
	medium TEXT NOT NULL,
	direction TEXT NOT NULL,
	state TEXT NOT NULL,
	reason TEXT NOT NULL,
	content_json TEXT NOT NULL,
	created_at_ms BIGINT NOT NULL,
	updated_at_ms BIGINT NOT NULL,
	PRIMARY KEY (contact, session_id)
);
CREATE INDEX IF NOT EXISTS idx_sharing_sessions_state ON sharing_sessions(state, updated_at_ms);
`

var sessionColumns = []string{
	"contact", "session_id", "medium", "direction", "state", "reason",
	"content_json", "created_at_ms", "updated_at_ms",
}

// sqlStore holds the queries shared by the SQL backends. Only the placeholder
// format and the migration differ between them.
type sqlStore struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func (s *sqlStore) PutSession(ctx context.Context, rec *model.SessionRecord) error {
	if err := validatePair(rec.State, rec.Reason); err != nil {
		return err
	}
	contentJSON, err := json.Marshal(rec.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	query, args, err := s.qb.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(rec.Contact, rec.SessionID, string(rec.Medium), string(rec.Direction),
			string(rec.State), string(reasonOrNone(rec.Reason)), string(contentJSON),
			s2ms(rec.CreatedAtUnix), s2ms(rec.UpdatedAtUnix)).
		Suffix(`ON CONFLICT (contact, session_id) DO UPDATE SET
			medium = excluded.medium,
			direction = excluded.direction,
			state = excluded.state,
			reason = excluded.reason,
			content_json = excluded.content_json,
			updated_at_ms = excluded.updated_at_ms`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqlStore) GetSession(ctx context.Context, contact, id string) (*model.SessionRecord, error) {
	query, args, err := s.qb.Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"contact": contact, "session_id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rec, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *sqlStore) SetStateAndReason(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode, now time.Time) error {
	if err := validatePair(state, reason); err != nil {
		return err
	}
	query, args, err := s.qb.Update(sessionsTable).
		Set("state", string(state)).
		Set("reason", string(reasonOrNone(reason))).
		Set("updated_at_ms", now.UnixMilli()).
		Where(sq.Eq{"contact": contact, "session_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) ScanByStates(ctx context.Context, states []model.State, fn RowFunc) error {
	if len(states) == 0 {
		return nil
	}
	query, args, err := s.qb.Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"state": stateStrings(states)}).
		OrderBy("created_at_ms", "session_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build scan: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *sqlStore) DeleteSession(ctx context.Context, contact, id string) error {
	query, args, err := s.qb.Delete(sessionsTable).
		Where(sq.Eq{"contact": contact, "session_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqlStore) DeleteTerminalBefore(ctx context.Context, t time.Time) (int, error) {
	query, args, err := s.qb.Delete(sessionsTable).
		Where(sq.And{
			sq.Eq{"state": stateStrings(terminalStates())},
			sq.Lt{"updated_at_ms": t.UnixMilli()},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func reasonOrNone(r model.ReasonCode) model.ReasonCode {
	if r == "" {
		return model.ReasonNone
	}
	return r
}

func scanSession(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	var medium, direction, state, reason, contentJSON string
	var createdAt, updatedAt int64

	if err := scanner.Scan(
		&rec.Contact, &rec.SessionID, &medium, &direction, &state, &reason,
		&contentJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	rec.Medium = model.Medium(medium)
	rec.Direction = model.Direction(direction)
	rec.State = model.State(state)
	rec.Reason = model.ReasonCode(reason)
	if err := json.Unmarshal([]byte(contentJSON), &rec.Content); err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", rec.SessionID, err)
	}
	rec.CreatedAtUnix = ms2s(createdAt)
	rec.UpdatedAtUnix = ms2s(updatedAt)
	return &rec, nil
}
