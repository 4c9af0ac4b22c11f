// Package recognition wraps a continuous speech-to-text capability in a
// restartable session state machine.
//
// A [Capability] is the raw recogniser: it starts, emits results and errors,
// and ends whenever it likes. A [Session] owns exactly one capability and
// layers the lifecycle on top:
//
//	idle → starting → active → stopping → idle
//	any  → errored  → idle
//
// Spontaneous ends are papered over by an automatic restart after a short,
// cancellable delay. Explicit [Session.Stop] and [Session.Close] guarantee
// that no restart fires afterwards, even when the capability reports a late
// end event.
package recognition

import (
	"context"
	"errors"
	"fmt"
)

// Error codes reported through [Events.OnError]. They mirror the codes of
// browser speech recognition so device front-ends can forward them as-is.
const (
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
	CodeAudioCapture      = "audio-capture"
	CodeNetwork           = "network"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
)

// ErrCapabilityUnavailable means the recogniser cannot run at all: the
// microphone is missing, permission was denied, or no backend is configured.
// It is reported once and never retried automatically.
var ErrCapabilityUnavailable = errors.New("recognition: capability unavailable")

// ErrClosed is returned by [Session.Start] after [Session.Close].
var ErrClosed = errors.New("recognition: session closed")

// StartError is returned by [Session.Start] when the capability refused to
// start.
type StartError struct {
	Session string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("recognition: start %s: %v", e.Session, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// IsBenign reports whether code is expected during normal operation and
// should not be surfaced to the user.
func IsBenign(code string) bool {
	return code == CodeNoSpeech
}

// Result is one transcript alternative delivered by the capability.
type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Config selects how the capability recognises speech.
type Config struct {
	// Continuous keeps the capability running across utterances. When false
	// it ends after the first final result.
	Continuous bool

	// Interim requests partial results in addition to finals.
	Interim bool

	// Language is a BCP-47 tag such as "en-US".
	Language string

	// Hints biases recognition toward the given phrases.
	Hints []string
}

// Events are the callbacks a capability invokes. Any field may be nil.
// Callbacks may arrive on any goroutine but a capability never delivers two
// events concurrently.
type Events struct {
	OnStart  func()
	OnEnd    func()
	OnError  func(code string)
	OnResult func(results []Result)
}

// Capability is a continuous speech-to-text recogniser. One capability runs
// one configuration at a time, so every [Session] needs its own instance.
type Capability interface {
	// Start begins recognition. A nil error means the request was accepted;
	// OnStart confirms that audio is flowing. Errors wrapping
	// [ErrCapabilityUnavailable] are permanent.
	Start(ctx context.Context, cfg Config, ev Events) error

	// Stop aborts recognition. It must not wait for event delivery, since it
	// is routinely called from inside an event callback. A capability may
	// still emit OnEnd after Stop returns.
	Stop()
}
