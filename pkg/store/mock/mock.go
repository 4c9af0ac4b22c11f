// Package mock provides a test double for [store.Store].
//
// The mock delegates storage to an in-memory [memstore.Store] so that reads
// observe earlier writes, records every method call for assertion, and
// injects errors per method.
//
// Typical usage:
//
//	s := mock.New()
//	s.SetErr("AddTask", errors.New("disk full"))
//
//	// inject s into the system under test …
//
//	if got := s.CallCount("AddTask"); got != 1 {
//	    t.Errorf("expected 1 AddTask call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vesper/pkg/store"
	"github.com/MrWong99/vesper/pkg/store/memstore"
)

var _ store.Store = (*Store)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context, non-function arguments, in order.
	Args []any
}

// Store is a recording, error-injecting [store.Store].
type Store struct {
	inner *memstore.Store

	mu     sync.Mutex
	calls  []Call
	errs   map[string]error
	closed bool
}

// New returns an empty mock store.
func New(opts ...memstore.Option) *Store {
	return &Store{inner: memstore.New(opts...), errs: map[string]error{}}
}

// SetErr makes method return err until cleared with a nil err.
func (m *Store) SetErr(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (m *Store) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Store) record(method string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	return m.errs[method]
}

// AddTask implements [store.TaskStore].
func (m *Store) AddTask(ctx context.Context, t store.NewTask) (store.Task, error) {
	if err := m.record("AddTask", t); err != nil {
		return store.Task{}, err
	}
	return m.inner.AddTask(ctx, t)
}

// ToggleTaskWhere implements [store.TaskStore].
func (m *Store) ToggleTaskWhere(ctx context.Context, match func(store.Task) bool) (store.Task, bool, error) {
	if err := m.record("ToggleTaskWhere"); err != nil {
		return store.Task{}, false, err
	}
	return m.inner.ToggleTaskWhere(ctx, match)
}

// ListTasks implements [store.TaskStore].
func (m *Store) ListTasks(ctx context.Context) ([]store.Task, error) {
	if err := m.record("ListTasks"); err != nil {
		return nil, err
	}
	return m.inner.ListTasks(ctx)
}

// AddEvent implements [store.EventStore].
func (m *Store) AddEvent(ctx context.Context, e store.NewEvent) (store.Event, error) {
	if err := m.record("AddEvent", e); err != nil {
		return store.Event{}, err
	}
	return m.inner.AddEvent(ctx, e)
}

// ListEvents implements [store.EventStore].
func (m *Store) ListEvents(ctx context.Context) ([]store.Event, error) {
	if err := m.record("ListEvents"); err != nil {
		return nil, err
	}
	return m.inner.ListEvents(ctx)
}

// AddJournalEntry implements [store.JournalStore].
func (m *Store) AddJournalEntry(ctx context.Context, e store.NewJournalEntry) (store.JournalEntry, error) {
	if err := m.record("AddJournalEntry", e); err != nil {
		return store.JournalEntry{}, err
	}
	return m.inner.AddJournalEntry(ctx, e)
}

// ListJournalEntries implements [store.JournalStore].
func (m *Store) ListJournalEntries(ctx context.Context) ([]store.JournalEntry, error) {
	if err := m.record("ListJournalEntries"); err != nil {
		return nil, err
	}
	return m.inner.ListJournalEntries(ctx)
}

// AddMoodEntry implements [store.JournalStore].
func (m *Store) AddMoodEntry(ctx context.Context, e store.NewMoodEntry) (store.MoodEntry, error) {
	if err := m.record("AddMoodEntry", e); err != nil {
		return store.MoodEntry{}, err
	}
	return m.inner.AddMoodEntry(ctx, e)
}

// ListMoods implements [store.JournalStore].
func (m *Store) ListMoods(ctx context.Context) ([]store.MoodEntry, error) {
	if err := m.record("ListMoods"); err != nil {
		return nil, err
	}
	return m.inner.ListMoods(ctx)
}

// AddHabit implements [store.HabitStore].
func (m *Store) AddHabit(ctx context.Context, h store.NewHabit) (store.Habit, error) {
	if err := m.record("AddHabit", h); err != nil {
		return store.Habit{}, err
	}
	return m.inner.AddHabit(ctx, h)
}

// ToggleHabitDayWhere implements [store.HabitStore].
func (m *Store) ToggleHabitDayWhere(ctx context.Context, match func(store.Habit) bool, date string) (store.Habit, bool, error) {
	if err := m.record("ToggleHabitDayWhere", date); err != nil {
		return store.Habit{}, false, err
	}
	return m.inner.ToggleHabitDayWhere(ctx, match, date)
}

// ListHabits implements [store.HabitStore].
func (m *Store) ListHabits(ctx context.Context) ([]store.Habit, error) {
	if err := m.record("ListHabits"); err != nil {
		return nil, err
	}
	return m.inner.ListHabits(ctx)
}

// Ping implements [store.Store].
func (m *Store) Ping(context.Context) error {
	return m.record("Ping")
}

// Close implements [store.Store].
func (m *Store) Close() {
	_ = m.record("Close")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
