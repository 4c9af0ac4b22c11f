// Package reminder raises notifications shortly before tasks fall due and
// events start.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/vesper/internal/notify"
	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/pkg/store"
)

const (
	// DefaultTaskLead is how long before a task's due date it is announced.
	DefaultTaskLead = time.Hour

	// DefaultEventLead is how long before an event's start it is announced.
	DefaultEventLead = 15 * time.Minute
)

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTimers replaces the wall-clock timer source.
func WithTimers(t recognition.Scheduler) Option {
	return func(s *Scheduler) { s.timers = t }
}

// WithTaskLead sets the task lead time. Default: 1h.
func WithTaskLead(d time.Duration) Option {
	return func(s *Scheduler) { s.taskLead = d }
}

// WithEventLead sets the event lead time. Default: 15m.
func WithEventLead(d time.Duration) Option {
	return func(s *Scheduler) { s.eventLead = d }
}

// Scheduler tracks one pending reminder per task or event. Reminders whose
// time has already passed are skipped.
type Scheduler struct {
	sink      notify.Sink
	now       func() time.Time
	timers    recognition.Scheduler
	taskLead  time.Duration
	eventLead time.Duration

	mu      sync.Mutex
	pending map[string]recognition.Timer
	closed  bool
}

// New creates a Scheduler that delivers reminders to sink.
func New(sink notify.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:      sink,
		now:       time.Now,
		timers:    recognition.SystemScheduler{},
		taskLead:  DefaultTaskLead,
		eventLead: DefaultEventLead,
		pending:   make(map[string]recognition.Timer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TaskAdded schedules a reminder for a task with a due date.
func (s *Scheduler) TaskAdded(ctx context.Context, t store.Task) {
	if t.DueDate == nil || t.Completed {
		return
	}
	s.schedule(ctx, "task:"+t.ID, t.DueDate.Add(-s.taskLead), notify.Notification{
		Title:    "Task Reminder",
		Body:     fmt.Sprintf(`"%s" is due in %s`, t.Title, humanize(s.taskLead)),
		Severity: notify.SeverityInfo,
		Route:    "/tasks",
	})
}

// EventAdded schedules a reminder for an event.
func (s *Scheduler) EventAdded(ctx context.Context, e store.Event) {
	start, ok := e.Start()
	if !ok {
		observe.Logger(ctx).Debug("reminder: event has no valid start", "id", e.ID, "time", e.Time)
		return
	}
	s.schedule(ctx, "event:"+e.ID, start.Add(-s.eventLead), notify.Notification{
		Title:    "Event Reminder",
		Body:     fmt.Sprintf(`"%s" starts in %s`, e.Title, humanize(s.eventLead)),
		Severity: notify.SeverityInfo,
		Route:    "/calendar",
	})
}

// Load schedules reminders for every existing task and event.
func (s *Scheduler) Load(ctx context.Context, tasks store.TaskStore, events store.EventStore) error {
	ts, err := tasks.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load tasks: %w", err)
	}
	for _, t := range ts {
		s.TaskAdded(ctx, t)
	}
	es, err := events.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load events: %w", err)
	}
	for _, e := range es {
		s.EventAdded(ctx, e)
	}
	return nil
}

// Pending returns the number of scheduled reminders.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending reminder. Later additions are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, t := range s.pending {
		t.Stop()
		delete(s.pending, key)
	}
}

func (s *Scheduler) schedule(ctx context.Context, key string, at time.Time, n notify.Notification) {
	delay := at.Sub(s.now())
	if delay <= 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.pending[key]; ok {
		old.Stop()
	}
	var timer recognition.Timer
	timer = s.timers.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.pending[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.mu.Unlock()
		s.sink.Notify(ctx, n)
	})
	s.pending[key] = timer
	observe.Logger(ctx).Debug("reminder: scheduled", "key", key, "at", at)
}

// humanize renders the lead times used in reminder bodies.
func humanize(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
