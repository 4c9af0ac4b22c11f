// Package intent defines the structured command contract between
// classification and dispatch, and the classifier that produces it.
//
// An [Intent] pairs a confidence score with exactly one [Payload]. The
// payload's dynamic type determines the intent's [Kind], so a task intent
// cannot carry calendar fields and an unknown intent carries nothing but the
// raw utterance.
//
// The JSON form is the wire contract shared with the remote classification
// backend and the HTTP/WebSocket surfaces:
//
//	{"type": "task", "confidence": 0.8, "data": {"action": "create", "title": "buy milk"}}
package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind names the category of a user command.
type Kind string

const (
	KindTask        Kind = "task"
	KindCalendar    Kind = "calendar"
	KindJournal     Kind = "journal"
	KindNavigation  Kind = "navigation"
	KindMood        Kind = "mood"
	KindHabit       Kind = "habit"
	KindWeather     Kind = "weather"
	KindAffirmation Kind = "affirmation"
	KindUnknown     Kind = "unknown"
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	KindTask, KindCalendar, KindJournal, KindNavigation, KindMood,
	KindHabit, KindWeather, KindAffirmation, KindUnknown,
}

// Valid reports whether k is one of [Kinds].
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// ErrInvalidIntent is wrapped by every decoding error caused by a document
// that does not match the intent contract.
var ErrInvalidIntent = errors.New("intent: invalid intent")

// Payload is the kind-specific data of an [Intent]. The set of
// implementations is closed.
type Payload interface {
	Kind() Kind
	validate() error
}

// Intent is a classified user command.
type Intent struct {
	// Confidence in [0, 1]. Informational only; dispatch never gates on it.
	Confidence float64

	Payload Payload
}

// Kind returns the payload's kind, or [KindUnknown] for a nil payload.
func (i Intent) Kind() Kind {
	if i.Payload == nil {
		return KindUnknown
	}
	return i.Payload.Kind()
}

// ─── Payloads ─────────────────────────────────────────────────────────────────

// TaskAction is the operation requested on a task.
type TaskAction string

const (
	TaskCreate   TaskAction = "create"
	TaskComplete TaskAction = "complete"
	TaskDelete   TaskAction = "delete"
	TaskUpdate   TaskAction = "update"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskPayload describes a task command.
type TaskPayload struct {
	Action      TaskAction `json:"action"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

func (TaskPayload) Kind() Kind { return KindTask }

func (p TaskPayload) validate() error {
	switch p.Action {
	case TaskCreate, TaskComplete, TaskDelete, TaskUpdate:
	default:
		return fmt.Errorf("task action %q", p.Action)
	}
	switch p.Priority {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("task priority %q", p.Priority)
	}
	if (p.Action == TaskCreate || p.Action == TaskComplete) && strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("task %s without title", p.Action)
	}
	return nil
}

// CalendarAction is the operation requested on the calendar.
type CalendarAction string

const (
	CalendarCreate CalendarAction = "create"
	CalendarView   CalendarAction = "view"
	CalendarUpdate CalendarAction = "update"
	CalendarDelete CalendarAction = "delete"
)

// CalendarPayload describes a calendar command.
type CalendarPayload struct {
	Action CalendarAction `json:"action"`
	Title  string         `json:"title,omitempty"`
	// Date is YYYY-MM-DD.
	Date string `json:"date,omitempty"`
	// Time is HH:MM, 24-hour.
	Time string `json:"time,omitempty"`
	// Duration in minutes.
	Duration    int    `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

func (CalendarPayload) Kind() Kind { return KindCalendar }

func (p CalendarPayload) validate() error {
	switch p.Action {
	case CalendarCreate, CalendarView, CalendarUpdate, CalendarDelete:
		return nil
	}
	return fmt.Errorf("calendar action %q", p.Action)
}

// JournalAction is the operation requested on the journal.
type JournalAction string

const (
	JournalCreate  JournalAction = "create"
	JournalReflect JournalAction = "reflect"
	JournalMood    JournalAction = "mood"
)

// JournalPayload describes a journal command.
type JournalPayload struct {
	Action  JournalAction `json:"action"`
	Content string        `json:"content,omitempty"`
	Mood    int           `json:"mood,omitempty"`
	Tags    []string      `json:"tags,omitempty"`
	Prompt  string        `json:"prompt,omitempty"`
}

func (JournalPayload) Kind() Kind { return KindJournal }

func (p JournalPayload) validate() error {
	switch p.Action {
	case JournalCreate, JournalReflect, JournalMood:
		return nil
	}
	return fmt.Errorf("journal action %q", p.Action)
}

// NavigationPayload asks to move the UI to a destination such as
// "tasks" or "settings".
type NavigationPayload struct {
	Destination string `json:"destination"`
}

func (NavigationPayload) Kind() Kind { return KindNavigation }

func (p NavigationPayload) validate() error {
	if p.Destination == "" {
		return errors.New("navigation destination missing")
	}
	return nil
}

// MoodPayload records how the user feels, rated 1 to 5.
type MoodPayload struct {
	Rating int    `json:"rating"`
	Notes  string `json:"notes,omitempty"`
}

func (MoodPayload) Kind() Kind { return KindMood }

func (p MoodPayload) validate() error { return nil }

// HabitAction is the operation requested on a habit.
type HabitAction string

const (
	HabitMark     HabitAction = "mark"
	HabitComplete HabitAction = "complete"
)

// HabitPayload describes a habit command. An empty HabitName matches the
// first habit.
type HabitPayload struct {
	Action    HabitAction `json:"action"`
	HabitName string      `json:"habitName,omitempty"`
	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date,omitempty"`
}

func (HabitPayload) Kind() Kind { return KindHabit }

func (p HabitPayload) validate() error {
	if p.Action == "" {
		return errors.New("habit action missing")
	}
	return nil
}

// WeatherPayload asks for the weather.
type WeatherPayload struct {
	Location string `json:"location,omitempty"`
}

func (WeatherPayload) Kind() Kind { return KindWeather }

func (WeatherPayload) validate() error { return nil }

// AffirmationPayload asks for encouragement.
type AffirmationPayload struct{}

func (AffirmationPayload) Kind() Kind { return KindAffirmation }

func (AffirmationPayload) validate() error { return nil }

// UnknownPayload carries the raw utterance of an unclassifiable command.
type UnknownPayload struct {
	Text string `json:"text"`
}

func (UnknownPayload) Kind() Kind { return KindUnknown }

func (UnknownPayload) validate() error { return nil }

// Unknown returns the fallback intent for text.
func Unknown(text string, confidence float64) Intent {
	return Intent{Confidence: confidence, Payload: UnknownPayload{Text: text}}
}

// ─── Wire format ──────────────────────────────────────────────────────────────

type wireIntent struct {
	Type       Kind            `json:"type"`
	Confidence *float64        `json:"confidence"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the intent in wire format.
func (i Intent) MarshalJSON() ([]byte, error) {
	var p Payload = i.Payload
	if p == nil {
		p = UnknownPayload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	c := i.Confidence
	return json.Marshal(wireIntent{Type: p.Kind(), Confidence: &c, Data: data})
}

// UnmarshalJSON decodes and validates a wire-format intent. Unknown intents
// keep whatever "text" the document carries.
func (i *Intent) UnmarshalJSON(b []byte) error {
	out, err := decode(b)
	if err != nil {
		return err
	}
	*i = out
	return nil
}

// Decode parses a wire-format intent and checks it against the contract.
// The raw utterance replaces the payload of unknown intents, since the
// contract allows them nothing else.
func Decode(b []byte, utterance string) (Intent, error) {
	out, err := decode(b)
	if err != nil {
		return Intent{}, err
	}
	if out.Kind() == KindUnknown {
		out.Payload = UnknownPayload{Text: utterance}
	}
	return out, nil
}

func decode(b []byte) (Intent, error) {
	var w wireIntent
	if err := json.Unmarshal(b, &w); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}
	if !w.Type.Valid() {
		return Intent{}, fmt.Errorf("%w: type %q", ErrInvalidIntent, w.Type)
	}
	if w.Confidence == nil {
		return Intent{}, fmt.Errorf("%w: confidence missing", ErrInvalidIntent)
	}
	if *w.Confidence < 0 || *w.Confidence > 1 {
		return Intent{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidIntent, *w.Confidence)
	}

	p, err := decodePayload(w.Type, w.Data)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %s data: %w", ErrInvalidIntent, w.Type, err)
	}
	if err := p.validate(); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}
	return Intent{Confidence: *w.Confidence, Payload: p}, nil
}

func decodePayload(k Kind, data json.RawMessage) (Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if data[0] != '{' {
		return nil, errors.New("not an object")
	}
	switch k {
	case KindTask:
		return decodeInto[TaskPayload](data)
	case KindCalendar:
		return decodeInto[CalendarPayload](data)
	case KindJournal:
		return decodeInto[JournalPayload](data)
	case KindNavigation:
		return decodeInto[NavigationPayload](data)
	case KindMood:
		return decodeInto[MoodPayload](data)
	case KindHabit:
		return decodeInto[HabitPayload](data)
	case KindWeather:
		return decodeInto[WeatherPayload](data)
	case KindAffirmation:
		return AffirmationPayload{}, nil
	default:
		return decodeInto[UnknownPayload](data)
	}
}

func decodeInto[T Payload](data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}
