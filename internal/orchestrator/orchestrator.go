// Package orchestrator turns a classified [intent.Intent] into store mutations,
// navigation, notifications and a spoken reply.
//
// [Orchestrator.Execute] never fails from the caller's point of view: a store
// error or a panic inside a handler is logged and answered with [Apology].
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vesper/internal/intent"
	"github.com/MrWong99/vesper/internal/notify"
	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/pkg/store"
)

const (
	defaultEventTime   = "12:00"
	defaultEventTitle  = "New Event"
	defaultJournalMood = 3
)

// Navigator switches the front end to a route such as "/tasks".
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a plain function to [Navigator].
type NavigatorFunc func(ctx context.Context, route string)

// Navigate implements [Navigator].
func (f NavigatorFunc) Navigate(ctx context.Context, route string) { f(ctx, route) }

// Reminders is told about every task and event the orchestrator creates.
type Reminders interface {
	TaskAdded(ctx context.Context, t store.Task)
	EventAdded(ctx context.Context, e store.Event)
}

// Stores groups the collections the orchestrator mutates.
type Stores struct {
	Tasks   store.TaskStore
	Events  store.EventStore
	Journal store.JournalStore
	Habits  store.HabitStore
}

// StoresFrom uses s for every collection.
func StoresFrom(s store.Store) Stores {
	return Stores{Tasks: s, Events: s, Journal: s, Habits: s}
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithNotifier sets the sink for toasts. Default: [notify.Discard].
func WithNotifier(s notify.Sink) Option {
	return func(o *Orchestrator) { o.notifier = s }
}

// WithNavigator sets the navigation side effect. Default: no-op.
func WithNavigator(n Navigator) Option {
	return func(o *Orchestrator) { o.navigator = n }
}

// WithReminders registers a hook for created tasks and events.
func WithReminders(r Reminders) Option {
	return func(o *Orchestrator) { o.reminders = r }
}

// WithClock overrides the time source used for "today" and mood timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithMetrics records dispatch latency and failures on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator executes intents. It is safe for concurrent use; all shared
// state lives in the stores.
type Orchestrator struct {
	stores    Stores
	notifier  notify.Sink
	navigator Navigator
	reminders Reminders
	now       func() time.Time
	metrics   *observe.Metrics
}

// New creates an Orchestrator over stores.
func New(stores Stores, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stores:    stores,
		notifier:  notify.Discard,
		navigator: NavigatorFunc(func(context.Context, string) {}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute performs in and returns the reply to speak.
func (o *Orchestrator) Execute(ctx context.Context, in intent.Intent) string {
	kind := string(in.Kind())
	ctx, span := observe.StartSpan(ctx, "orchestrator.execute")
	defer span.End()
	span.SetAttributes(attribute.String("intent.kind", kind))
	start := time.Now()

	reply, err := o.dispatchSafe(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Error("orchestrator: execute failed", "kind", kind, "err", err)
		if o.metrics != nil {
			o.metrics.RecordDispatchFailure(ctx, kind)
		}
		reply = Apology
	}
	if o.metrics != nil {
		o.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("kind", kind)))
	}
	return reply
}

func (o *Orchestrator) dispatchSafe(ctx context.Context, in intent.Intent) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestrator: panic: %v", r)
		}
	}()
	return o.dispatch(ctx, in)
}

func (o *Orchestrator) dispatch(ctx context.Context, in intent.Intent) (string, error) {
	switch p := in.Payload.(type) {
	case intent.TaskPayload:
		return o.task(ctx, p)
	case intent.CalendarPayload:
		return o.calendar(ctx, p)
	case intent.JournalPayload:
		return o.journal(ctx, p)
	case intent.NavigationPayload:
		return o.navigate(ctx, p), nil
	case intent.MoodPayload:
		return o.mood(ctx, p)
	case intent.HabitPayload:
		return o.habit(ctx, p)
	case intent.WeatherPayload:
		return msgWeather, nil
	case intent.AffirmationPayload:
		return msgAffirmation, nil
	default:
		return msgUnknown, nil
	}
}

// ─── Tasks ───────────────────────────────────────────────────────────────────

func (o *Orchestrator) task(ctx context.Context, p intent.TaskPayload) (string, error) {
	switch p.Action {
	case intent.TaskCreate:
		t, err := o.stores.Tasks.AddTask(ctx, store.NewTask{
			Title:       p.Title,
			Description: p.Description,
			Priority:    priority(p.Priority),
			DueDate:     o.parseDate(ctx, p.DueDate),
		})
		if err != nil {
			return "", fmt.Errorf("orchestrator: add task: %w", err)
		}
		if o.reminders != nil {
			o.reminders.TaskAdded(ctx, t)
		}
		o.notify(ctx, "Task Added", fmt.Sprintf(`"%s" has been added to your tasks.`, t.Title), notify.SeverityConfirmation)
		return fmt.Sprintf(`I've added "%s" to your task list!`, t.Title), nil

	case intent.TaskComplete:
		want := strings.TrimSpace(p.Title)
		if want == "" {
			return fmt.Sprintf(`I couldn't find an uncompleted task matching "%s".`, p.Title), nil
		}
		t, ok, err := o.stores.Tasks.ToggleTaskWhere(ctx, func(t store.Task) bool {
			return !t.Completed && store.ContainsFold(t.Title, want)
		})
		if err != nil {
			return "", fmt.Errorf("orchestrator: complete task: %w", err)
		}
		if !ok {
			return fmt.Sprintf(`I couldn't find an uncompleted task matching "%s".`, p.Title), nil
		}
		o.notify(ctx, "Task Completed", fmt.Sprintf(`"%s" marked as complete!`, t.Title), notify.SeverityCelebration)
		return fmt.Sprintf(`Great job! I've marked "%s" as complete.`, t.Title), nil

	default:
		return msgTaskHelp, nil
	}
}

func priority(p intent.Priority) store.Priority {
	switch p {
	case intent.PriorityLow:
		return store.PriorityLow
	case intent.PriorityHigh:
		return store.PriorityHigh
	default:
		return store.PriorityMedium
	}
}

// ─── Calendar ────────────────────────────────────────────────────────────────

func (o *Orchestrator) calendar(ctx context.Context, p intent.CalendarPayload) (string, error) {
	switch p.Action {
	case intent.CalendarCreate:
		date := o.today()
		if d := o.parseDate(ctx, p.Date); d != nil {
			date = *d
		}
		title := orDefault(p.Title, defaultEventTitle)
		e, err := o.stores.Events.AddEvent(ctx, store.NewEvent{
			Title:       title,
			Description: p.Description,
			Date:        date,
			Time:        orDefault(p.Time, defaultEventTime),
			Duration:    p.Duration,
		})
		if err != nil {
			return "", fmt.Errorf("orchestrator: add event: %w", err)
		}
		if o.reminders != nil {
			o.reminders.EventAdded(ctx, e)
		}
		o.notify(ctx, "Event Scheduled", fmt.Sprintf(`"%s" has been added to your calendar.`, e.Title), notify.SeverityConfirmation)
		return fmt.Sprintf(`I've scheduled "%s" on your calendar!`, e.Title), nil

	case intent.CalendarView:
		return msgCalendarView, nil

	default:
		return msgCalendarHelp, nil
	}
}

// ─── Journal & mood ──────────────────────────────────────────────────────────

func (o *Orchestrator) journal(ctx context.Context, p intent.JournalPayload) (string, error) {
	switch p.Action {
	case intent.JournalCreate:
		mood := p.Mood
		if mood == 0 {
			mood = defaultJournalMood
		}
		if _, err := o.stores.Journal.AddJournalEntry(ctx, store.NewJournalEntry{
			Content: p.Content,
			Mood:    mood,
			Tags:    p.Tags,
		}); err != nil {
			return "", fmt.Errorf("orchestrator: add journal entry: %w", err)
		}
		o.notify(ctx, "Journal Entry Saved", "Your thoughts have been recorded.", notify.SeverityConfirmation)
		return msgJournalSaved, nil

	case intent.JournalReflect:
		return msgReflect, nil

	default:
		return msgJournalHelp, nil
	}
}

func (o *Orchestrator) mood(ctx context.Context, p intent.MoodPayload) (string, error) {
	if _, err := o.stores.Journal.AddMoodEntry(ctx, store.NewMoodEntry{
		Rating:    p.Rating,
		Notes:     p.Notes,
		Timestamp: o.now(),
	}); err != nil {
		return "", fmt.Errorf("orchestrator: add mood entry: %w", err)
	}
	o.notify(ctx, "Mood Recorded", fmt.Sprintf("Mood rating: %d/5", p.Rating), notify.SeverityConfirmation)
	if p.Rating >= 1 && p.Rating < len(moodMessages) {
		return moodMessages[p.Rating], nil
	}
	return msgMoodDefault, nil
}

// ─── Navigation ──────────────────────────────────────────────────────────────

func (o *Orchestrator) navigate(ctx context.Context, p intent.NavigationPayload) string {
	route, ok := Routes[p.Destination]
	if !ok {
		return fmt.Sprintf("I'm not sure how to navigate to %s.", p.Destination)
	}
	o.navigator.Navigate(ctx, route)
	return fmt.Sprintf("Taking you to %s!", p.Destination)
}

// ─── Habits ──────────────────────────────────────────────────────────────────

func (o *Orchestrator) habit(ctx context.Context, p intent.HabitPayload) (string, error) {
	switch p.Action {
	case intent.HabitMark, intent.HabitComplete:
	default:
		return msgHabitHelp, nil
	}

	date := o.today().Format(store.DateLayout)
	if d := o.parseDate(ctx, p.Date); d != nil {
		date = d.Format(store.DateLayout)
	}
	want := strings.TrimSpace(p.HabitName)
	h, ok, err := o.stores.Habits.ToggleHabitDayWhere(ctx, func(h store.Habit) bool {
		return store.ContainsFold(h.Name, want)
	}, date)
	if err != nil {
		return "", fmt.Errorf("orchestrator: toggle habit: %w", err)
	}
	if !ok {
		return fmt.Sprintf(`I couldn't find a habit matching "%s". You can create it in the Habits section.`, p.HabitName), nil
	}
	o.notify(ctx, "Habit Updated", fmt.Sprintf(`"%s" updated for %s.`, h.Name, date), notify.SeverityConfirmation)
	return fmt.Sprintf(`Great! Marked "%s" as completed for today. Keep up the great work!`, h.Name), nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (o *Orchestrator) notify(ctx context.Context, title, body string, sev notify.Severity) {
	o.notifier.Notify(ctx, notify.Notification{Title: title, Body: body, Severity: sev})
}

func (o *Orchestrator) today() time.Time {
	now := o.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// parseDate reads a YYYY-MM-DD date in the clock's location. Empty or
// malformed input yields nil.
func (o *Orchestrator) parseDate(ctx context.Context, s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.ParseInLocation(store.DateLayout, s, o.now().Location())
	if err != nil {
		observe.Logger(ctx).Debug("orchestrator: ignoring malformed date", "date", s, "err", err)
		return nil
	}
	return &d
}

// orDefault returns s, or def when s is blank.
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
