package intent

import (
	"regexp"
	"strings"
)

var (
	taskKeywords     = regexp.MustCompile(`(?i)add|create|new|task|todo`)
	calendarKeywords = regexp.MustCompile(`(?i)schedule|meeting|calendar`)
)

// moodWords is scanned in order; the first word found sets the rating.
var moodWords = []struct {
	word   string
	rating int
}{
	{"terrible", 1}, {"awful", 1},
	{"sad", 2}, {"down", 2},
	{"okay", 3}, {"fine", 3},
	{"good", 4}, {"great", 4},
	{"amazing", 5}, {"fantastic", 5}, {"excellent", 5},
}

// Rules is the offline keyword classifier. It is deterministic and
// evaluates its cues in a fixed order, so "show my tasks" navigates rather
// than creating a task named "show my".
type Rules struct{}

// Classify maps text to an intent. It never fails.
func (Rules) Classify(text string) Intent {
	lower := strings.ToLower(text)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	navigate := func(dest string) Intent {
		return Intent{Confidence: 0.9, Payload: NavigationPayload{Destination: dest}}
	}
	wantsNav := func() bool { return has("show", "go to", "open") }

	switch {
	case has("dashboard", "home"):
		return navigate("dashboard")

	case has("task", "todo"):
		if wantsNav() {
			return navigate("tasks")
		}
		p := TaskPayload{Action: TaskCreate, Priority: PriorityMedium}
		if has("complete") {
			p.Action = TaskComplete
		}
		if has("urgent", "important") {
			p.Priority = PriorityHigh
		}
		p.Title = strip(taskKeywords, text, "New task")
		return Intent{Confidence: 0.8, Payload: p}

	case has("calendar", "schedule", "meeting"):
		if wantsNav() {
			return navigate("calendar")
		}
		return Intent{Confidence: 0.8, Payload: CalendarPayload{
			Action: CalendarCreate,
			Title:  strip(calendarKeywords, text, "New event"),
		}}

	case has("journal", "write", "reflect"):
		if wantsNav() {
			return navigate("journal")
		}
		return Intent{Confidence: 0.8, Payload: JournalPayload{
			Action:  JournalCreate,
			Content: text,
			Mood:    3,
		}}

	case has("feeling", "mood"):
		rating := 3
		for _, mw := range moodWords {
			if strings.Contains(lower, mw.word) {
				rating = mw.rating
				break
			}
		}
		return Intent{Confidence: 0.9, Payload: MoodPayload{Rating: rating, Notes: text}}
	}

	return Unknown(text, 0.1)
}

// strip removes every keyword match from text, trims the result, and returns
// fallback when nothing is left.
func strip(re *regexp.Regexp, text, fallback string) string {
	if s := strings.TrimSpace(re.ReplaceAllString(text, "")); s != "" {
		return s
	}
	return fallback
}
