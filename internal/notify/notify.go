// Package notify carries user-visible notifications (toasts) from the voice
// pipeline to whatever front end is attached.
package notify

import (
	"context"

	"github.com/MrWong99/vesper/internal/observe"
)

// Severity selects how a notification is presented.
type Severity string

const (
	SeverityInfo         Severity = "info"
	SeverityConfirmation Severity = "confirmation"
	SeverityCelebration  Severity = "celebration"
	SeverityDestructive  Severity = "destructive"
)

// Notification is a short title/body message. Route, when set, is the screen
// the front end should offer to open.
type Notification struct {
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Severity Severity `json:"severity"`
	Route    string   `json:"route,omitempty"`
}

// Sink receives notifications. Implementations must not block for long; the
// caller is usually on the pipeline's hot path.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a plain function to [Sink].
type Func func(ctx context.Context, n Notification)

// Notify implements [Sink].
func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Multi fans a notification out to every sink in order.
type Multi []Sink

// Notify implements [Sink].
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// Log writes every notification to the context logger at info level.
type Log struct{}

// Notify implements [Sink].
func (Log) Notify(ctx context.Context, n Notification) {
	observe.Logger(ctx).Info("notification",
		"title", n.Title,
		"body", n.Body,
		"severity", string(n.Severity),
		"route", n.Route,
	)
}

// Discard drops every notification.
var Discard Sink = Func(func(context.Context, Notification) {})
