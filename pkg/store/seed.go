package store

import (
	"context"
	"fmt"
	"time"
)

// Seed populates s with the demo data set, placed relative to now. The
// resulting list order matches a fresh install: tasks, events and habits
// oldest first, journal and mood entries newest first.
func Seed(ctx context.Context, s Store, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := func(offset int) time.Time { return today.AddDate(0, 0, offset) }
	date := func(offset int) string { return day(offset).Format(DateLayout) }
	due := now.AddDate(0, 0, 2)

	tasks := []NewTask{
		{Title: "Review morning affirmations", Description: "Start the day with positive thoughts", Priority: PriorityHigh},
		{Title: "Complete project proposal", Description: "Finish the Q1 project proposal document", Priority: PriorityHigh, DueDate: &due},
		{Title: "Call mom", Description: "Weekly check-in call", Priority: PriorityMedium, Completed: true},
	}
	for _, t := range tasks {
		if _, err := s.AddTask(ctx, t); err != nil {
			return fmt.Errorf("store: seed task %q: %w", t.Title, err)
		}
	}

	events := []NewEvent{
		{Title: "Team standup", Description: "Daily team sync meeting", Date: day(0), Time: "09:00", Duration: 30},
		{Title: "Lunch with Sarah", Date: day(0), Time: "12:30", Duration: 60},
		{Title: "Doctor appointment", Description: "Annual checkup", Date: day(1), Time: "14:00", Duration: 45},
	}
	for _, e := range events {
		if _, err := s.AddEvent(ctx, e); err != nil {
			return fmt.Errorf("store: seed event %q: %w", e.Title, err)
		}
	}

	// Oldest first; each add prepends.
	entries := []NewJournalEntry{
		{
			Content:   "Feeling a bit overwhelmed with work lately. Need to remember to take breaks and practice self-care.",
			Mood:      2,
			Tags:      []string{"work", "stress", "self-care"},
			CreatedAt: now.AddDate(0, 0, -1),
		},
		{
			Content:   "Today was a good day. I felt productive and accomplished several tasks on my list. The morning meditation really helped set a positive tone.",
			Mood:      4,
			Tags:      []string{"productivity", "meditation", "gratitude"},
			CreatedAt: now,
		},
	}
	for _, e := range entries {
		if _, err := s.AddJournalEntry(ctx, e); err != nil {
			return fmt.Errorf("store: seed journal entry: %w", err)
		}
	}

	moods := []NewMoodEntry{
		{Rating: 2, Notes: "Stressed about work deadlines", Timestamp: now.AddDate(0, 0, -2)},
		{Rating: 3, Notes: "Neutral day, nothing special", Timestamp: now.AddDate(0, 0, -1)},
		{Rating: 4, Notes: "Feeling energetic and positive", Timestamp: now},
	}
	for _, m := range moods {
		if _, err := s.AddMoodEntry(ctx, m); err != nil {
			return fmt.Errorf("store: seed mood: %w", err)
		}
	}

	habits := []NewHabit{
		{
			Name: "Drink Water", Description: "Stay hydrated with 8 glasses of water daily", Icon: "💧", Category: "health",
			CompletedDates: []string{date(-3), date(-2), date(-1)},
		},
		{
			Name: "Morning Exercise", Description: "30 minutes of physical activity", Icon: "💪", Category: "health",
			CompletedDates: []string{date(-2), date(0)},
		},
		{
			Name: "Read for 20 minutes", Description: "Daily reading habit for personal growth", Icon: "📚", Category: "learning",
			CompletedDates: []string{date(-3), date(-1)},
		},
	}
	for _, h := range habits {
		if _, err := s.AddHabit(ctx, h); err != nil {
			return fmt.Errorf("store: seed habit %q: %w", h.Name, err)
		}
	}
	return nil
}
