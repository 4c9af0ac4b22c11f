// Package dictation turns a continuous recognition session into an ordered
// stream of final transcripts.
//
// Interim results only feed live feedback through the OnInterim callback.
// The final results of one recognition event are joined into a single
// transcript. Transcripts are queued and handed to the [Handler] one at a
// time on a single worker goroutine, so at most one transcript is ever being
// processed per session regardless of how fast the user keeps talking.
package dictation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/internal/recognition"
)

// DefaultRestartDelay is the pause before recognition restarts after a
// spontaneous end while dictation is active.
const DefaultRestartDelay = time.Second

// Transcript is one final utterance.
type Transcript struct {
	Text       string
	Confidence float64
	At         time.Time
}

// Handler processes one final transcript. It runs on the session's worker
// goroutine; the next transcript waits until it returns.
type Handler func(ctx context.Context, t Transcript)

// Option configures a [Session].
type Option func(*Session)

// WithRestartDelay overrides [DefaultRestartDelay].
func WithRestartDelay(d time.Duration) Option {
	return func(s *Session) { s.restartDelay = d }
}

// WithLanguage sets the recognition language.
func WithLanguage(lang string) Option {
	return func(s *Session) { s.language = lang }
}

// WithScheduler replaces the wall-clock scheduler for restart timers.
func WithScheduler(sched recognition.Scheduler) Option {
	return func(s *Session) { s.sched = sched }
}

// WithMetrics records restarts and errors on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// OnInterim registers a callback for live partial text. It receives the empty
// string when a final result replaces the interim text.
func OnInterim(fn func(text string)) Option {
	return func(s *Session) { s.onInterim = fn }
}

// OnError registers a callback for recognition errors other than no-speech.
func OnError(fn func(code string)) Option {
	return func(s *Session) { s.onError = fn }
}

// Session is a dictation session.
type Session struct {
	handler      Handler
	restartDelay time.Duration
	language     string
	sched        recognition.Scheduler
	metrics      *observe.Metrics
	onInterim    func(string)
	onError      func(string)

	rec *recognition.Session

	mu      sync.Mutex
	queue   []Transcript
	active  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	done    chan struct{}
	started bool

	processing atomic.Bool
}

// New creates a dictation session over its own capability c.
func New(c recognition.Capability, h Handler, opts ...Option) *Session {
	s := &Session{
		handler:      h,
		restartDelay: DefaultRestartDelay,
		sched:        recognition.SystemScheduler{},
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.rec = recognition.NewSession(c,
		recognition.WithName("dictation"),
		recognition.WithConfig(recognition.Config{Continuous: true, Interim: true, Language: s.language}),
		recognition.WithAutoRestart(true),
		recognition.WithRestartDelay(s.restartDelay),
		recognition.WithScheduler(s.sched),
		recognition.WithMetrics(s.metrics),
		recognition.OnResult(s.handleResults),
		recognition.OnError(func(code string) {
			if s.onError != nil {
				s.onError(code)
			}
		}),
	)
	return s
}

// Activate starts recognition and the worker. Calling Activate on an active
// session is a no-op.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	s.active = true
	if !s.started {
		s.started = true
		go s.work()
	}
	s.mu.Unlock()
	return s.rec.Start(ctx)
}

// Deactivate stops recognition, drops transcripts that have not been picked
// up yet, and clears the interim text. A transcript already being processed
// runs to completion.
func (s *Session) Deactivate() {
	s.mu.Lock()
	s.active = false
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	s.rec.Stop()
	if dropped > 0 {
		slog.Debug("dictation: dropped queued transcripts", "count", dropped)
	}
	s.interim("")
}

// Active reports whether dictation is switched on.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsProcessing reports whether the handler is running.
func (s *Session) IsProcessing() bool { return s.processing.Load() }

// Pending returns the number of queued transcripts.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Status returns the state of the underlying recognition session.
func (s *Session) Status() recognition.Status { return s.rec.Status() }

// Close stops recognition and the worker, waiting for an in-flight handler
// to return.
func (s *Session) Close() error {
	s.Deactivate()
	err := s.rec.Close()
	s.cancel()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
	return err
}

func (s *Session) handleResults(results []recognition.Result) {
	var (
		latest string
		final  strings.Builder
		conf   = 1.0
		finals int
	)
	for _, r := range results {
		if !r.IsFinal {
			latest = r.Text
			continue
		}
		// One result event is one utterance, however the recogniser split it.
		final.WriteString(r.Text)
		conf = min(conf, r.Confidence)
		finals++
	}

	text := strings.TrimSpace(final.String())
	if text == "" {
		if finals == 0 && latest != "" {
			s.interim(latest)
		}
		return
	}
	t := Transcript{Text: text, Confidence: conf, At: time.Now()}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	s.interim("")

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) interim(text string) {
	if s.onInterim != nil {
		s.onInterim(text)
	}
}

func (s *Session) next() (Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Transcript{}, false
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	return t, true
}

func (s *Session) work() {
	defer close(s.done)
	for {
		for {
			t, ok := s.next()
			if !ok {
				break
			}
			s.run(t)
			if s.ctx.Err() != nil {
				return
			}
		}
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
	}
}

func (s *Session) run(t Transcript) {
	s.processing.Store(true)
	defer s.processing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dictation: transcript handler panicked", "panic", r)
		}
	}()
	slog.Debug("dictation: processing transcript", "text", t.Text)
	s.handler(s.ctx, t)
}
