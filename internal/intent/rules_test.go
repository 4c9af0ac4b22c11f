package intent_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/MrWong99/vesper/internal/intent"
)

func TestRules_Classify(t *testing.T) {
	t.Parallel()
	nav := func(dest string) intent.Intent {
		return intent.Intent{Confidence: 0.9, Payload: intent.NavigationPayload{Destination: dest}}
	}
	tests := []struct {
		name string
		text string
		want intent.Intent
	}{
		{"dashboard", "Take me to the dashboard", nav("dashboard")},
		{"home wins over task", "go home and add a task", nav("dashboard")},
		{"show tasks navigates", "show my tasks", nav("tasks")},
		{"open todo navigates", "Open the todo list", nav("tasks")},
		{"go to tasks navigates", "go to tasks", nav("tasks")},
		{
			name: "create task strips keywords",
			text: "Add a task to call mom",
			want: intent.Intent{Confidence: 0.8, Payload: intent.TaskPayload{
				Action: intent.TaskCreate, Title: "a  to call mom", Priority: intent.PriorityMedium,
			}},
		},
		{
			name: "urgent task is high priority",
			text: "new urgent task pay rent",
			want: intent.Intent{Confidence: 0.8, Payload: intent.TaskPayload{
				Action: intent.TaskCreate, Title: "urgent  pay rent", Priority: intent.PriorityHigh,
			}},
		},
		{
			name: "complete task",
			text: "Complete the workout task",
			want: intent.Intent{Confidence: 0.8, Payload: intent.TaskPayload{
				Action: intent.TaskComplete, Title: "Complete the workout", Priority: intent.PriorityMedium,
			}},
		},
		{
			name: "important task",
			text: "important todo",
			want: intent.Intent{Confidence: 0.8, Payload: intent.TaskPayload{
				Action: intent.TaskCreate, Title: "important", Priority: intent.PriorityHigh,
			}},
		},
		{
			name: "empty task title falls back",
			text: "Add task",
			want: intent.Intent{Confidence: 0.8, Payload: intent.TaskPayload{
				Action: intent.TaskCreate, Title: "New task", Priority: intent.PriorityMedium,
			}},
		},
		{
			name: "keyword inside word is stripped",
			text: "todo address the letters",
			want: intent.Intent{Confidence: 0.8, Payload: intent.TaskPayload{
				Action: intent.TaskCreate, Title: "ress the letters", Priority: intent.PriorityMedium,
			}},
		},
		{"open calendar navigates", "open my calendar", nav("calendar")},
		{
			name: "schedule meeting",
			text: "Schedule a meeting with Sam",
			want: intent.Intent{Confidence: 0.8, Payload: intent.CalendarPayload{
				Action: intent.CalendarCreate, Title: "a  with Sam",
			}},
		},
		{
			name: "empty event title falls back",
			text: "meeting",
			want: intent.Intent{Confidence: 0.8, Payload: intent.CalendarPayload{
				Action: intent.CalendarCreate, Title: "New event",
			}},
		},
		{"show journal navigates", "show my journal", nav("journal")},
		{
			name: "write journal entry",
			text: "I want to write about my day",
			want: intent.Intent{Confidence: 0.8, Payload: intent.JournalPayload{
				Action: intent.JournalCreate, Content: "I want to write about my day", Mood: 3,
			}},
		},
		{
			name: "reflect",
			text: "Help me reflect",
			want: intent.Intent{Confidence: 0.8, Payload: intent.JournalPayload{
				Action: intent.JournalCreate, Content: "Help me reflect", Mood: 3,
			}},
		},
		{
			name: "feeling great",
			text: "I'm feeling great today",
			want: intent.Intent{Confidence: 0.9, Payload: intent.MoodPayload{Rating: 4, Notes: "I'm feeling great today"}},
		},
		{
			name: "table order breaks ties",
			text: "Feeling down but the food was good",
			want: intent.Intent{Confidence: 0.9, Payload: intent.MoodPayload{Rating: 2, Notes: "Feeling down but the food was good"}},
		},
		{
			name: "awful before amazing",
			text: "my mood is amazing after an awful start",
			want: intent.Intent{Confidence: 0.9, Payload: intent.MoodPayload{Rating: 1, Notes: "my mood is amazing after an awful start"}},
		},
		{
			name: "mood default",
			text: "What's my mood",
			want: intent.Intent{Confidence: 0.9, Payload: intent.MoodPayload{Rating: 3, Notes: "What's my mood"}},
		},
		{
			name: "excellent",
			text: "feeling EXCELLENT",
			want: intent.Intent{Confidence: 0.9, Payload: intent.MoodPayload{Rating: 5, Notes: "feeling EXCELLENT"}},
		},
		{
			name: "unknown",
			text: "What's the capital of France?",
			want: intent.Intent{Confidence: 0.1, Payload: intent.UnknownPayload{Text: "What's the capital of France?"}},
		},
		{
			name: "empty input",
			text: "",
			want: intent.Intent{Confidence: 0.1, Payload: intent.UnknownPayload{Text: ""}},
		},
	}
	var rules intent.Rules
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rules.Classify(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify(%q)\n got  %#v\n want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRules_Deterministic(t *testing.T) {
	t.Parallel()
	var rules intent.Rules
	inputs := []string{"add a task", "show my calendar", "feeling sad", "hello"}
	for _, in := range inputs {
		first := rules.Classify(in)
		for range 5 {
			if got := rules.Classify(in); !reflect.DeepEqual(got, first) {
				t.Fatalf("Classify(%q) not deterministic: %#v vs %#v", in, got, first)
			}
		}
	}
}

// payloadKind maps a payload's concrete type to its kind, independently of
// the Kind methods.
func payloadKind(p intent.Payload) (intent.Kind, bool) {
	switch p.(type) {
	case intent.TaskPayload:
		return intent.KindTask, true
	case intent.CalendarPayload:
		return intent.KindCalendar, true
	case intent.JournalPayload:
		return intent.KindJournal, true
	case intent.NavigationPayload:
		return intent.KindNavigation, true
	case intent.MoodPayload:
		return intent.KindMood, true
	case intent.HabitPayload:
		return intent.KindHabit, true
	case intent.WeatherPayload:
		return intent.KindWeather, true
	case intent.AffirmationPayload:
		return intent.KindAffirmation, true
	case intent.UnknownPayload:
		return intent.KindUnknown, true
	}
	return "", false
}

func checkWellFormed(t *testing.T, in intent.Intent, text string) {
	t.Helper()
	if !in.Kind().Valid() {
		t.Fatalf("kind %q is not valid", in.Kind())
	}
	pk, ok := payloadKind(in.Payload)
	if !ok || pk != in.Kind() {
		t.Fatalf("payload %T does not match kind %q", in.Payload, in.Kind())
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		t.Fatalf("confidence %v outside [0, 1]", in.Confidence)
	}
	if u, ok := in.Payload.(intent.UnknownPayload); ok && u.Text != text {
		t.Fatalf("unknown payload text = %q, want %q", u.Text, text)
	}
}

func FuzzRules_Classify(f *testing.F) {
	for _, seed := range []string{
		"", "   ", "add a task", "Show my TODO list", "schedule", "reflect on today",
		"feeling amazing but sad", "go home", "task task todo", "ünïcödé calendar \x00",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, text string) {
		got := intent.Rules{}.Classify(text)
		checkWellFormed(t, got, text)

		// Every rule result satisfies the wire contract.
		b, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		back, err := intent.Decode(b, text)
		if err != nil {
			t.Fatalf("Decode(%s): %v", b, err)
		}
		if back.Kind() != got.Kind() {
			t.Fatalf("decoded kind = %q, want %q", back.Kind(), got.Kind())
		}
	})
}
