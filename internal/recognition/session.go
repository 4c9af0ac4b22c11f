package recognition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/vesper/internal/observe"
)

// DefaultRestartDelay is the pause between a spontaneous end and the
// automatic restart when no [WithRestartDelay] option is given.
const DefaultRestartDelay = time.Second

// Status is the lifecycle state of a [Session].
type Status int

const (
	StatusIdle Status = iota
	StatusStarting
	StatusActive
	StatusStopping
	StatusErrored
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarting:
		return "starting"
	case StatusActive:
		return "active"
	case StatusStopping:
		return "stopping"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Option configures a [Session].
type Option func(*Session)

// WithName labels the session in logs and metrics.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithConfig sets the recognition configuration passed to the capability.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithAutoRestart enables restarting after spontaneous ends.
func WithAutoRestart(on bool) Option {
	return func(s *Session) { s.wantRestart = on }
}

// WithRestartDelay sets the pause before an automatic restart.
func WithRestartDelay(d time.Duration) Option {
	return func(s *Session) { s.restartDelay = d }
}

// WithScheduler replaces the wall-clock scheduler used for restart timers.
func WithScheduler(sched Scheduler) Option {
	return func(s *Session) { s.sched = sched }
}

// WithMetrics records restarts and errors on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// OnResult registers the callback for recognition results.
func OnResult(fn func(results []Result)) Option {
	return func(s *Session) { s.onResult = fn }
}

// OnError registers the callback for non-benign error codes.
func OnError(fn func(code string)) Option {
	return func(s *Session) { s.onError = fn }
}

// OnStatus registers a callback invoked after every state change.
func OnStatus(fn func(Status)) Option {
	return func(s *Session) { s.onStatus = fn }
}

// Session owns one [Capability] and drives its lifecycle. All methods are
// safe for concurrent use and may be called from inside the session's own
// callbacks.
type Session struct {
	capability   Capability
	name         string
	cfg          Config
	wantRestart  bool
	restartDelay time.Duration
	sched        Scheduler
	metrics      *observe.Metrics

	onResult func([]Result)
	onError  func(string)
	onStatus func(Status)

	mu          sync.Mutex
	status      Status
	autoRestart bool
	gen         uint64
	timer       Timer
	ctx         context.Context
	closed      bool
	lastError   string
}

// NewSession creates an idle session around c.
func NewSession(c Capability, opts ...Option) *Session {
	s := &Session{
		capability:   c,
		name:         "recognition",
		restartDelay: DefaultRestartDelay,
		sched:        SystemScheduler{},
		ctx:          context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the session label.
func (s *Session) Name() string { return s.name }

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the most recent error code or start failure, cleared
// when a run starts successfully.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// SetConfig replaces the recognition configuration. It takes effect on the
// next start or restart.
func (s *Session) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Start begins recognition. It is a no-op unless the session is idle. ctx
// bounds the session: once it is done no further restarts are attempted.
//
// A capability that refuses to start yields a *[StartError]; when it wraps
// [ErrCapabilityUnavailable] auto-restart is disabled until the next Start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != StatusIdle {
		s.mu.Unlock()
		return nil
	}
	s.ctx = ctx
	s.autoRestart = s.wantRestart
	gen, cfg := s.beginLocked()
	s.mu.Unlock()

	s.notifyStatus(StatusStarting)
	return s.launch(ctx, gen, cfg)
}

// Stop aborts recognition and cancels any pending restart. No restart is
// scheduled afterwards, even if the capability reports a late end.
func (s *Session) Stop() {
	s.mu.Lock()
	s.autoRestart = false
	s.cancelTimerLocked()
	s.gen++
	if s.status == StatusIdle {
		s.mu.Unlock()
		return
	}
	s.status = StatusStopping
	s.mu.Unlock()
	s.notifyStatus(StatusStopping)

	s.capability.Stop()

	s.mu.Lock()
	changed := s.status == StatusStopping
	if changed {
		s.status = StatusIdle
	}
	s.mu.Unlock()
	if changed {
		s.notifyStatus(StatusIdle)
	}
}

// Close stops the session for good. Subsequent Start calls return
// [ErrClosed].
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.autoRestart = false
	s.cancelTimerLocked()
	s.gen++
	running := s.status != StatusIdle
	s.status = StatusIdle
	s.mu.Unlock()

	if running {
		s.capability.Stop()
		s.notifyStatus(StatusIdle)
	}
	return nil
}

// beginLocked opens a new run generation. Callers hold s.mu.
func (s *Session) beginLocked() (uint64, Config) {
	s.cancelTimerLocked()
	s.gen++
	s.status = StatusStarting
	cfg := s.cfg
	cfg.Hints = append([]string(nil), s.cfg.Hints...)
	return s.gen, cfg
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) launch(ctx context.Context, gen uint64, cfg Config) error {
	err := s.capability.Start(ctx, cfg, s.events(gen))
	if err != nil {
		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.status = StatusIdle
			s.lastError = err.Error()
			if errors.Is(err, ErrCapabilityUnavailable) {
				s.autoRestart = false
			}
		}
		s.mu.Unlock()
		if current {
			s.notifyStatus(StatusIdle)
		}
		return &StartError{Session: s.name, Err: err}
	}

	// Stop or Close may have run while the capability was starting.
	s.mu.Lock()
	superseded := s.gen != gen
	s.mu.Unlock()
	if superseded {
		s.capability.Stop()
	}
	return nil
}

func (s *Session) events(gen uint64) Events {
	return Events{
		OnStart:  func() { s.handleStart(gen) },
		OnEnd:    func() { s.handleEnd(gen) },
		OnError:  func(code string) { s.handleError(gen, code) },
		OnResult: func(results []Result) { s.handleResult(gen, results) },
	}
}

func (s *Session) handleStart(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusStarting {
		s.mu.Unlock()
		return
	}
	s.status = StatusActive
	s.lastError = ""
	s.mu.Unlock()
	s.notifyStatus(StatusActive)
}

func (s *Session) handleResult(gen uint64, results []Result) {
	s.mu.Lock()
	stale := gen != s.gen
	fn := s.onResult
	s.mu.Unlock()
	if stale || fn == nil || len(results) == 0 {
		return
	}
	fn(results)
}

func (s *Session) handleError(gen uint64, code string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = StatusErrored
	s.lastError = code
	ctx := s.ctx
	fn := s.onError
	s.mu.Unlock()
	s.notifyStatus(StatusErrored)

	if s.metrics != nil {
		s.metrics.RecordRecognitionError(ctx, s.name, code)
	}
	if IsBenign(code) {
		slog.Debug("recognition: no speech detected", "session", s.name)
		return
	}
	slog.Warn("recognition: capability error", "session", s.name, "code", code)
	if fn != nil {
		fn(code)
	}
}

func (s *Session) handleEnd(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	if s.autoRestart && !s.closed && s.ctx.Err() == nil {
		s.cancelTimerLocked()
		s.timer = s.sched.AfterFunc(s.restartDelay, func() { s.restart(gen) })
	}
	s.mu.Unlock()
	s.notifyStatus(StatusIdle)
}

func (s *Session) restart(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.status != StatusIdle || !s.autoRestart || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx := s.ctx
	next, cfg := s.beginLocked()
	s.mu.Unlock()

	s.notifyStatus(StatusStarting)
	if s.metrics != nil {
		s.metrics.RecordRecognitionRestart(ctx, s.name)
	}
	if err := s.launch(ctx, next, cfg); err != nil {
		slog.Warn("recognition: restart failed", "session", s.name, "err", err)
	}
}

func (s *Session) notifyStatus(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}
