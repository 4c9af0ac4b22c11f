package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/vesper/pkg/store"
)

const habitColumns = `id, name, description, icon, category, completed_dates, created_at, updated_at`

func scanHabit(row pgx.Row) (store.Habit, error) {
	var h store.Habit
	err := row.Scan(&h.ID, &h.Name, &h.Description, &h.Icon, &h.Category, &h.CompletedDates, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

// AddHabit implements [store.HabitStore].
func (s *Store) AddHabit(ctx context.Context, in store.NewHabit) (store.Habit, error) {
	dates := in.CompletedDates
	if dates == nil {
		dates = []string{}
	}
	const q = `
		INSERT INTO habits (id, name, description, icon, category, completed_dates)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + habitColumns
	h, err := scanHabit(s.pool.QueryRow(ctx, q,
		uuid.NewString(), in.Name, in.Description, in.Icon, in.Category, dates))
	if err != nil {
		return store.Habit{}, fmt.Errorf("postgres store: add habit: %w", err)
	}
	return h, nil
}

// ToggleHabitDayWhere implements [store.HabitStore]. The candidate rows are
// locked for the duration of the transaction.
func (s *Store) ToggleHabitDayWhere(ctx context.Context, match func(store.Habit) bool, date string) (store.Habit, bool, error) {
	var (
		out   store.Habit
		found bool
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY seq FOR UPDATE`)
		if err != nil {
			return err
		}
		habits, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.Habit, error) { return scanHabit(r) })
		if err != nil {
			return err
		}
		for _, h := range habits {
			if !match(h) {
				continue
			}
			const q = `
				UPDATE habits SET completed_dates = $2, updated_at = now()
				WHERE id = $1
				RETURNING ` + habitColumns
			out, err = scanHabit(tx.QueryRow(ctx, q, h.ID, store.ToggleDate(h.CompletedDates, date)))
			if err != nil {
				return err
			}
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return store.Habit{}, false, fmt.Errorf("postgres store: toggle habit: %w", err)
	}
	return out, found, nil
}

// ListHabits implements [store.HabitStore].
func (s *Store) ListHabits(ctx context.Context) ([]store.Habit, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list habits: %w", err)
	}
	habits, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.Habit, error) { return scanHabit(r) })
	if err != nil {
		return nil, fmt.Errorf("postgres store: list habits: %w", err)
	}
	return habits, nil
}
