package wakeword

import "testing"

func TestMatcher_Match(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		m      Matcher
		text   string
		phrase string
		want   bool
	}{
		{"exact", Matcher{}, "hey louis", "hey louis", true},
		{"case insensitive", Matcher{}, "HEY Louis, add a task", "hey louis", true},
		{"embedded", Matcher{}, "okay so hey louisiana", "hey louis", true},
		{"partial phrase", Matcher{}, "hey lou", "hey louis", false},
		{"empty phrase", Matcher{}, "anything", "  ", false},
		{"misspelling without phonetic", Matcher{}, "hey lewis", "hey louis", false},
		{"misspelling with phonetic", Matcher{Phonetic: true}, "Hey Lewis, what's next", "hey louis", true},
		{"unrelated with phonetic", Matcher{Phonetic: true}, "open the calendar", "hey louis", false},
		{"too short with phonetic", Matcher{Phonetic: true}, "louis", "hey louis", false},
		{"strict threshold", Matcher{Phonetic: true, Threshold: 0.999}, "hey lewis", "hey louis", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.m.Match(tt.text, tt.phrase); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.want)
			}
		})
	}
}
