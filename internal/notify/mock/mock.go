// Package mock provides a recording [notify.Sink] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vesper/internal/notify"
)

var _ notify.Sink = (*Sink)(nil)

// Sink records every notification it receives. Safe for concurrent use.
type Sink struct {
	mu   sync.Mutex
	sent []notify.Notification
	ch   chan notify.Notification
}

// NewSink returns a Sink whose notifications can also be awaited via C.
func NewSink() *Sink {
	return &Sink{ch: make(chan notify.Notification, 64)}
}

// Notify implements [notify.Sink].
func (s *Sink) Notify(_ context.Context, n notify.Notification) {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()
	if s.ch != nil {
		select {
		case s.ch <- n:
		default:
		}
	}
}

// C delivers notifications as they arrive. Nil for a zero Sink.
func (s *Sink) C() <-chan notify.Notification { return s.ch }

// Sent returns a copy of every notification received so far.
func (s *Sink) Sent() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

// Last returns the most recent notification and whether there was one.
func (s *Sink) Last() (notify.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return notify.Notification{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// Reset clears recorded notifications.
func (s *Sink) Reset() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}
