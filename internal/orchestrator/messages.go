package orchestrator

// Apology is returned whenever executing an intent fails.
const Apology = "Sorry, I encountered an error while processing that request."

const (
	msgTaskHelp     = "I can help you create or complete tasks. What would you like to do?"
	msgCalendarView = "Let me show you your upcoming events."
	msgCalendarHelp = "I can help you schedule events or view your calendar."
	msgJournalSaved = "I've saved your journal entry. Take a moment to breathe and reflect."
	msgReflect      = "That's a beautiful practice. What's on your mind today?"
	msgJournalHelp  = "I'm here to listen. What would you like to journal about?"
	msgMoodDefault  = "Thank you for sharing how you're feeling."
	msgHabitHelp    = `I can help you mark habits as complete. Try saying "mark [habit name] as done".`
	msgWeather      = "Let me check the weather for you!"
	msgAffirmation  = "Here's a positive affirmation: You are capable of amazing things!"
	msgUnknown      = "I'm not sure how to help with that. Can you try rephrasing?"
)

// moodMessages is indexed by rating 1..5.
var moodMessages = [...]string{
	1: "I hear that you're having a tough time. Remember, difficult moments pass. You're stronger than you know.",
	2: "It sounds like today is challenging. Would you like to try a breathing exercise or write about what's on your mind?",
	3: "Thank you for checking in. Sometimes okay is perfectly fine. How can I support you today?",
	4: "I'm glad you're feeling good! What's contributing to your positive mood today?",
	5: "That's wonderful! Your positive energy is inspiring. What made today so special?",
}

// Routes maps navigation destinations to front-end paths.
var Routes = map[string]string{
	"dashboard": "/",
	"tasks":     "/tasks",
	"calendar":  "/calendar",
	"journal":   "/journal",
	"hands":     "/hands",
	"settings":  "/settings",
}
