// Package llm defines the Provider interface for chat-completion backends.
//
// The voice pipeline only needs single-shot completions: the intent
// classifier sends a system prompt plus the user's utterance and reads back
// a JSON document. Streaming and tool calling are deliberately absent.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser] or [RoleAssistant].
	Role string

	// Content is the text of the turn.
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything needed for one completion.
type CompletionRequest struct {
	// SystemPrompt, if set, is sent as a leading system message.
	SystemPrompt string

	// Messages is the ordered conversation. Must be non-empty.
	Messages []Message

	// Temperature in [0, 2]. Zero selects the backend default.
	Temperature float64

	// MaxTokens caps the completion length. Zero selects the backend default.
	MaxTokens int

	// JSON asks for a reply that is a single JSON object. Backends without
	// a JSON mode ignore it, so callers must still parse defensively.
	JSON bool
}

// CompletionResponse is the result of [Provider.Complete].
type CompletionResponse struct {
	// Content is the assistant's reply text.
	Content string

	// Model is the model that actually served the request, when reported.
	Model string

	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req and waits for the full reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
