package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/vesper/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [store.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tasks
// ─────────────────────────────────────────────────────────────────────────────

const taskColumns = `id, title, description, priority, due_date, completed, created_at, updated_at`

func scanTask(row pgx.Row) (store.Task, error) {
	var t store.Task
	var priority string
	err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &t.DueDate, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	t.Priority = store.Priority(priority)
	return t, err
}

// AddTask implements [store.TaskStore].
func (s *Store) AddTask(ctx context.Context, in store.NewTask) (store.Task, error) {
	priority := in.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}
	const q = `
		INSERT INTO tasks (id, title, description, priority, due_date, completed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + taskColumns
	t, err := scanTask(s.pool.QueryRow(ctx, q,
		uuid.NewString(), in.Title, in.Description, string(priority), in.DueDate, in.Completed))
	if err != nil {
		return store.Task{}, fmt.Errorf("postgres store: add task: %w", err)
	}
	return t, nil
}

// ToggleTaskWhere implements [store.TaskStore]. The candidate rows are locked
// for the duration of the transaction.
func (s *Store) ToggleTaskWhere(ctx context.Context, match func(store.Task) bool) (store.Task, bool, error) {
	var (
		out   store.Task
		found bool
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq FOR UPDATE`)
		if err != nil {
			return err
		}
		tasks, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.Task, error) { return scanTask(r) })
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if !match(t) {
				continue
			}
			const q = `
				UPDATE tasks SET completed = NOT completed, updated_at = now()
				WHERE id = $1
				RETURNING ` + taskColumns
			out, err = scanTask(tx.QueryRow(ctx, q, t.ID))
			if err != nil {
				return err
			}
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return store.Task{}, false, fmt.Errorf("postgres store: toggle task: %w", err)
	}
	return out, found, nil
}

// ListTasks implements [store.TaskStore].
func (s *Store) ListTasks(ctx context.Context) ([]store.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.Task, error) { return scanTask(r) })
	if err != nil {
		return nil, fmt.Errorf("postgres store: list tasks: %w", err)
	}
	return tasks, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

const eventColumns = `id, title, description, event_date, event_time, duration_min, created_at`

func scanEvent(row pgx.Row) (store.Event, error) {
	var e store.Event
	var date time.Time
	err := row.Scan(&e.ID, &e.Title, &e.Description, &date, &e.Time, &e.Duration, &e.CreatedAt)
	// DATE columns scan as UTC midnight; calendar days are local.
	y, m, d := date.Date()
	e.Date = time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return e, err
}

// AddEvent implements [store.EventStore].
func (s *Store) AddEvent(ctx context.Context, in store.NewEvent) (store.Event, error) {
	y, m, d := in.Date.Date()
	const q = `
		INSERT INTO events (id, title, description, event_date, event_time, duration_min)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + eventColumns
	e, err := scanEvent(s.pool.QueryRow(ctx, q,
		uuid.NewString(), in.Title, in.Description, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), in.Time, in.Duration))
	if err != nil {
		return store.Event{}, fmt.Errorf("postgres store: add event: %w", err)
	}
	return e, nil
}

// ListEvents implements [store.EventStore].
func (s *Store) ListEvents(ctx context.Context) ([]store.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.Event, error) { return scanEvent(r) })
	if err != nil {
		return nil, fmt.Errorf("postgres store: list events: %w", err)
	}
	return events, nil
}
