package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/vesper/pkg/store"
)

const journalColumns = `id, content, mood, tags, created_at`

func scanJournalEntry(row pgx.Row) (store.JournalEntry, error) {
	var e store.JournalEntry
	err := row.Scan(&e.ID, &e.Content, &e.Mood, &e.Tags, &e.CreatedAt)
	return e, err
}

// AddJournalEntry implements [store.JournalStore].
func (s *Store) AddJournalEntry(ctx context.Context, in store.NewJournalEntry) (store.JournalEntry, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	const q = `
		INSERT INTO journal_entries (id, content, mood, tags, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + journalColumns
	e, err := scanJournalEntry(s.pool.QueryRow(ctx, q,
		uuid.NewString(), in.Content, in.Mood, tags, orNow(in.CreatedAt)))
	if err != nil {
		return store.JournalEntry{}, fmt.Errorf("postgres store: add journal entry: %w", err)
	}
	return e, nil
}

// ListJournalEntries implements [store.JournalStore].
func (s *Store) ListJournalEntries(ctx context.Context) ([]store.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+journalColumns+` FROM journal_entries ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list journal entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.JournalEntry, error) { return scanJournalEntry(r) })
	if err != nil {
		return nil, fmt.Errorf("postgres store: list journal entries: %w", err)
	}
	return entries, nil
}

const moodColumns = `id, rating, notes, timestamp`

func scanMood(row pgx.Row) (store.MoodEntry, error) {
	var m store.MoodEntry
	err := row.Scan(&m.ID, &m.Rating, &m.Notes, &m.Timestamp)
	return m, err
}

// AddMoodEntry implements [store.JournalStore].
func (s *Store) AddMoodEntry(ctx context.Context, in store.NewMoodEntry) (store.MoodEntry, error) {
	const q = `
		INSERT INTO mood_entries (id, rating, notes, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + moodColumns
	m, err := scanMood(s.pool.QueryRow(ctx, q, uuid.NewString(), in.Rating, in.Notes, orNow(in.Timestamp)))
	if err != nil {
		return store.MoodEntry{}, fmt.Errorf("postgres store: add mood entry: %w", err)
	}
	return m, nil
}

// ListMoods implements [store.JournalStore].
func (s *Store) ListMoods(ctx context.Context) ([]store.MoodEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+moodColumns+` FROM mood_entries ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list moods: %w", err)
	}
	moods, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.MoodEntry, error) { return scanMood(r) })
	if err != nil {
		return nil, fmt.Errorf("postgres store: list moods: %w", err)
	}
	return moods, nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
