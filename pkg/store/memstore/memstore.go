// Package memstore provides an in-process implementation of [store.Store].
//
// All collections live behind a single mutex, so every operation is atomic
// with respect to every other. Returned values are copies; mutating them
// never affects stored state.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/vesper/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt / UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps every domain collection in memory.
type Store struct {
	now func() time.Time

	mu      sync.Mutex
	tasks   []store.Task
	events  []store.Event
	journal []store.JournalEntry
	moods   []store.MoodEntry
	habits  []store.Habit
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ─── Tasks ───────────────────────────────────────────────────────────────────

// AddTask implements [store.TaskStore].
func (s *Store) AddTask(_ context.Context, in store.NewTask) (store.Task, error) {
	now := s.now()
	t := store.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     cloneTime(in.DueDate),
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Priority == "" {
		t.Priority = store.PriorityMedium
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return copyTask(t), nil
}

// ToggleTaskWhere implements [store.TaskStore].
func (s *Store) ToggleTaskWhere(_ context.Context, match func(store.Task) bool) (store.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if !match(copyTask(s.tasks[i])) {
			continue
		}
		s.tasks[i].Completed = !s.tasks[i].Completed
		s.tasks[i].UpdatedAt = s.now()
		return copyTask(s.tasks[i]), true, nil
	}
	return store.Task{}, false, nil
}

// ListTasks implements [store.TaskStore].
func (s *Store) ListTasks(context.Context) ([]store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = copyTask(t)
	}
	return out, nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

// AddEvent implements [store.EventStore].
func (s *Store) AddEvent(_ context.Context, in store.NewEvent) (store.Event, error) {
	e := store.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Time:        in.Time,
		Duration:    in.Duration,
		CreatedAt:   s.now(),
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return e, nil
}

// ListEvents implements [store.EventStore].
func (s *Store) ListEvents(context.Context) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events), nil
}

// ─── Journal ─────────────────────────────────────────────────────────────────

// AddJournalEntry implements [store.JournalStore].
func (s *Store) AddJournalEntry(_ context.Context, in store.NewJournalEntry) (store.JournalEntry, error) {
	e := store.JournalEntry{
		ID:        uuid.NewString(),
		Content:   in.Content,
		Mood:      in.Mood,
		Tags:      slices.Clone(in.Tags),
		CreatedAt: in.CreatedAt,
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.journal = slices.Insert(s.journal, 0, e)
	s.mu.Unlock()
	return copyEntry(e), nil
}

// ListJournalEntries implements [store.JournalStore].
func (s *Store) ListJournalEntries(context.Context) ([]store.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.JournalEntry, len(s.journal))
	for i, e := range s.journal {
		out[i] = copyEntry(e)
	}
	return out, nil
}

// AddMoodEntry implements [store.JournalStore].
func (s *Store) AddMoodEntry(_ context.Context, in store.NewMoodEntry) (store.MoodEntry, error) {
	m := store.MoodEntry{
		ID:        uuid.NewString(),
		Rating:    in.Rating,
		Notes:     in.Notes,
		Timestamp: in.Timestamp,
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.mu.Lock()
	s.moods = slices.Insert(s.moods, 0, m)
	s.mu.Unlock()
	return m, nil
}

// ListMoods implements [store.JournalStore].
func (s *Store) ListMoods(context.Context) ([]store.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.moods), nil
}

// ─── Habits ──────────────────────────────────────────────────────────────────

// AddHabit implements [store.HabitStore].
func (s *Store) AddHabit(_ context.Context, in store.NewHabit) (store.Habit, error) {
	now := s.now()
	h := store.Habit{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Description:    in.Description,
		Icon:           in.Icon,
		Category:       in.Category,
		CompletedDates: slices.Clone(in.CompletedDates),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if h.CompletedDates == nil {
		h.CompletedDates = []string{}
	}
	s.mu.Lock()
	s.habits = append(s.habits, h)
	s.mu.Unlock()
	return copyHabit(h), nil
}

// ToggleHabitDayWhere implements [store.HabitStore].
func (s *Store) ToggleHabitDayWhere(_ context.Context, match func(store.Habit) bool, date string) (store.Habit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.habits {
		if !match(copyHabit(s.habits[i])) {
			continue
		}
		s.habits[i].CompletedDates = store.ToggleDate(s.habits[i].CompletedDates, date)
		s.habits[i].UpdatedAt = s.now()
		return copyHabit(s.habits[i]), true, nil
	}
	return store.Habit{}, false, nil
}

// ListHabits implements [store.HabitStore].
func (s *Store) ListHabits(context.Context) ([]store.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Habit, len(s.habits))
	for i, h := range s.habits {
		out[i] = copyHabit(h)
	}
	return out, nil
}

// Ping implements [store.Store]. It always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements [store.Store]. It is a no-op.
func (s *Store) Close() {}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyTask(t store.Task) store.Task {
	t.DueDate = cloneTime(t.DueDate)
	return t
}

func copyEntry(e store.JournalEntry) store.JournalEntry {
	e.Tags = slices.Clone(e.Tags)
	return e
}

func copyHabit(h store.Habit) store.Habit {
	h.CompletedDates = slices.Clone(h.CompletedDates)
	return h
}
