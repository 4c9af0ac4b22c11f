// Package store defines the domain collections the voice pipeline mutates:
// tasks, calendar events, journal entries, mood check-ins and habits.
//
// The interfaces are deliberately narrow. Every mutation is a single atomic
// call, so callers never lock anything themselves. Lookups that must act on
// "the first matching record" take a predicate and perform the search and the
// update in one step.
//
// Collection order is part of the contract: tasks, events and habits list
// oldest first; journal entries and mood entries list newest first.
//
// Two implementations ship with the module: [memstore] keeps everything in
// process memory, and [postgres] persists to PostgreSQL via pgx.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an ID does not exist.
var ErrNotFound = errors.New("store: not found")

// TaskStore manages tasks.
type TaskStore interface {
	// AddTask appends a task. Empty priority defaults to medium.
	AddTask(ctx context.Context, t NewTask) (Task, error)

	// ToggleTaskWhere flips the completion flag of the first task, in
	// collection order, for which match returns true. ok is false when no
	// task matched.
	ToggleTaskWhere(ctx context.Context, match func(Task) bool) (t Task, ok bool, err error)

	// ListTasks returns all tasks in collection order.
	ListTasks(ctx context.Context) ([]Task, error)
}

// EventStore manages calendar events.
type EventStore interface {
	// AddEvent appends an event.
	AddEvent(ctx context.Context, e NewEvent) (Event, error)

	// ListEvents returns all events in collection order.
	ListEvents(ctx context.Context) ([]Event, error)
}

// JournalStore manages journal and mood entries.
type JournalStore interface {
	// AddJournalEntry prepends an entry.
	AddJournalEntry(ctx context.Context, e NewJournalEntry) (JournalEntry, error)

	// ListJournalEntries returns entries newest first.
	ListJournalEntries(ctx context.Context) ([]JournalEntry, error)

	// AddMoodEntry prepends a mood check-in.
	AddMoodEntry(ctx context.Context, m NewMoodEntry) (MoodEntry, error)

	// ListMoods returns mood check-ins newest first.
	ListMoods(ctx context.Context) ([]MoodEntry, error)
}

// HabitStore manages habits.
type HabitStore interface {
	// AddHabit appends a habit.
	AddHabit(ctx context.Context, h NewHabit) (Habit, error)

	// ToggleHabitDayWhere toggles date (YYYY-MM-DD) on the first habit, in
	// collection order, for which match returns true. ok is false when no
	// habit matched.
	ToggleHabitDayWhere(ctx context.Context, match func(Habit) bool, date string) (h Habit, ok bool, err error)

	// ListHabits returns all habits in collection order.
	ListHabits(ctx context.Context) ([]Habit, error)
}

// Store bundles every collection plus lifecycle hooks.
type Store interface {
	TaskStore
	EventStore
	JournalStore
	HabitStore

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close()
}
