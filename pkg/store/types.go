package store

import (
	"slices"
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD layout used for habit days and event dates.
const DateLayout = "2006-01-02"

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is a to-do item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask holds the caller-supplied fields of a task.
type NewTask struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
	Completed   bool
}

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	// Time is HH:MM on Date.
	Time string `json:"time"`
	// Duration in minutes.
	Duration  int       `json:"duration,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Start combines Date and Time in Date's location. ok is false when Time is
// not a valid HH:MM value.
func (e Event) Start() (start time.Time, ok bool) {
	t, err := time.Parse("15:04", e.Time)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, e.Date.Location()), true
}

// NewEvent holds the caller-supplied fields of an event.
type NewEvent struct {
	Title       string
	Description string
	Date        time.Time
	Time        string
	Duration    int
}

// JournalEntry is a free-text journal record.
type JournalEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Mood      int       `json:"mood"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewJournalEntry holds the caller-supplied fields of a journal entry. A
// zero CreatedAt means now.
type NewJournalEntry struct {
	Content   string
	Mood      int
	Tags      []string
	CreatedAt time.Time
}

// MoodEntry is a single mood check-in rated 1 to 5.
type MoodEntry struct {
	ID        string    `json:"id"`
	Rating    int       `json:"rating"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMoodEntry holds the caller-supplied fields of a mood entry. A zero
// Timestamp means now.
type NewMoodEntry struct {
	Rating    int
	Notes     string
	Timestamp time.Time
}

// Habit is a recurring activity tracked per day.
type Habit struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	Category       string    `json:"category,omitempty"`
	CompletedDates []string  `json:"completedDates"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CompletedOn reports whether the habit is marked done on date (YYYY-MM-DD).
func (h Habit) CompletedOn(date string) bool {
	return slices.Contains(h.CompletedDates, date)
}

// NewHabit holds the caller-supplied fields of a habit.
type NewHabit struct {
	Name           string
	Description    string
	Icon           string
	Category       string
	CompletedDates []string
}

// ToggleDate returns dates with date removed if present, or appended if not.
// The input slice is not modified.
func ToggleDate(dates []string, date string) []string {
	if i := slices.Index(dates, date); i >= 0 {
		return slices.Delete(slices.Clone(dates), i, i+1)
	}
	return append(slices.Clone(dates), date)
}

// ContainsFold reports whether s contains substr, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
