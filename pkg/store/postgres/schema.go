// Package postgres provides a PostgreSQL-backed implementation of
// [store.Store].
//
// All collections share a single [pgxpool.Pool]. Every table carries a
// BIGSERIAL seq column that fixes collection order independently of
// timestamps, which callers may backdate.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//
//	task, _ := s.AddTask(ctx, store.NewTask{Title: "call mom"})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tasks and events
// ─────────────────────────────────────────────────────────────────────────────

const ddlPlanner = `
CREATE TABLE IF NOT EXISTS tasks (
    seq          BIGSERIAL    NOT NULL UNIQUE,
    id           TEXT         PRIMARY KEY,
    title        TEXT         NOT NULL,
    description  TEXT         NOT NULL DEFAULT '',
    priority     TEXT         NOT NULL DEFAULT 'medium',
    due_date     TIMESTAMPTZ,
    completed    BOOLEAN      NOT NULL DEFAULT false,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
    seq           BIGSERIAL    NOT NULL UNIQUE,
    id            TEXT         PRIMARY KEY,
    title         TEXT         NOT NULL,
    description   TEXT         NOT NULL DEFAULT '',
    event_date    DATE         NOT NULL,
    event_time    TEXT         NOT NULL,
    duration_min  INTEGER      NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_date ON events (event_date);
`

// ─────────────────────────────────────────────────────────────────────────────
// Journal and mood
// ─────────────────────────────────────────────────────────────────────────────

const ddlJournal = `
CREATE TABLE IF NOT EXISTS journal_entries (
    seq         BIGSERIAL    NOT NULL UNIQUE,
    id          TEXT         PRIMARY KEY,
    content     TEXT         NOT NULL,
    mood        INTEGER      NOT NULL DEFAULT 3,
    tags        TEXT[]       NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mood_entries (
    seq        BIGSERIAL    NOT NULL UNIQUE,
    id         TEXT         PRIMARY KEY,
    rating     INTEGER      NOT NULL,
    notes      TEXT         NOT NULL DEFAULT '',
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Habits
// ─────────────────────────────────────────────────────────────────────────────

const ddlHabits = `
CREATE TABLE IF NOT EXISTS habits (
    seq              BIGSERIAL    NOT NULL UNIQUE,
    id               TEXT         PRIMARY KEY,
    name             TEXT         NOT NULL,
    description      TEXT         NOT NULL DEFAULT '',
    icon             TEXT         NOT NULL DEFAULT '',
    category         TEXT         NOT NULL DEFAULT '',
    completed_dates  TEXT[]       NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates all required tables. It is idempotent and safe to call on
// every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlPlanner, ddlJournal, ddlHabits} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
