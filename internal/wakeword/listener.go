// Package wakeword runs an always-on recognition session that watches every
// partial and final transcript for a wake phrase.
//
// On the first hit within a result batch the listener stops recognition,
// fires its wake callback once, and resumes listening after a cooldown so the
// rest of the user's sentence is not re-detected. Benign recogniser errors
// never surface; the underlying session restarts on its own after every end.
package wakeword

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/internal/recognition"
)

const (
	// DefaultPhrase is the wake phrase used when none is configured.
	DefaultPhrase = "hey louis"

	// DefaultCooldown is the pause after a detection before listening resumes.
	DefaultCooldown = 2 * time.Second

	// DefaultRestartDelay is the pause before the session restarts after a
	// spontaneous end.
	DefaultRestartDelay = 100 * time.Millisecond
)

// Option configures a [Listener].
type Option func(*Listener)

// WithPhrase sets the wake phrase.
func WithPhrase(p string) Option {
	return func(l *Listener) { l.phrase = p }
}

// WithCooldown sets the pause between a detection and resumed listening.
func WithCooldown(d time.Duration) Option {
	return func(l *Listener) { l.cooldown = d }
}

// WithRestartDelay sets the session restart delay.
func WithRestartDelay(d time.Duration) Option {
	return func(l *Listener) { l.restartDelay = d }
}

// WithLanguage sets the recognition language.
func WithLanguage(lang string) Option {
	return func(l *Listener) { l.language = lang }
}

// WithPhonetic enables phonetic tolerance with the given Jaro-Winkler
// threshold. Zero selects [DefaultPhoneticThreshold].
func WithPhonetic(threshold float64) Option {
	return func(l *Listener) {
		l.matcher = Matcher{Phonetic: true, Threshold: threshold}
	}
}

// WithScheduler replaces the wall-clock scheduler for cooldown and restart
// timers.
func WithScheduler(s recognition.Scheduler) Option {
	return func(l *Listener) { l.sched = s }
}

// WithMetrics records detections, restarts and errors on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// Listener watches the microphone for the wake phrase.
type Listener struct {
	session      *recognition.Session
	onWake       func()
	cooldown     time.Duration
	restartDelay time.Duration
	language     string
	sched        recognition.Scheduler
	metrics      *observe.Metrics

	mu            sync.Mutex
	phrase        string
	matcher       Matcher
	enabled       bool
	ctx           context.Context
	cooldownTimer recognition.Timer

	// beforeResume runs between the enabled check and the restart in resume.
	beforeResume func()
}

// New creates a listener over its own capability c. onWake is invoked once
// per detection, on the capability's event goroutine.
func New(c recognition.Capability, onWake func(), opts ...Option) *Listener {
	l := &Listener{
		onWake:       onWake,
		phrase:       DefaultPhrase,
		cooldown:     DefaultCooldown,
		restartDelay: DefaultRestartDelay,
		sched:        recognition.SystemScheduler{},
		ctx:          context.Background(),
	}
	for _, o := range opts {
		o(l)
	}
	l.session = recognition.NewSession(c,
		recognition.WithName("wakeword"),
		recognition.WithConfig(l.configLocked()),
		recognition.WithAutoRestart(true),
		recognition.WithRestartDelay(l.restartDelay),
		recognition.WithScheduler(l.sched),
		recognition.WithMetrics(l.metrics),
		recognition.OnResult(l.handleResults),
		recognition.OnError(l.handleError),
	)
	return l
}

func (l *Listener) configLocked() recognition.Config {
	return recognition.Config{
		Continuous: true,
		Interim:    true,
		Language:   l.language,
		Hints:      []string{l.phrase},
	}
}

// Start begins listening. Calling Start on a running listener is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	l.enabled = true
	l.ctx = ctx
	l.mu.Unlock()
	return l.session.Start(ctx)
}

// Stop ends listening and cancels any pending cooldown.
func (l *Listener) Stop() {
	l.mu.Lock()
	l.enabled = false
	if l.cooldownTimer != nil {
		l.cooldownTimer.Stop()
		l.cooldownTimer = nil
	}
	l.mu.Unlock()
	l.session.Stop()
}

// Close stops the listener for good.
func (l *Listener) Close() error {
	l.Stop()
	return l.session.Close()
}

// Phrase returns the current wake phrase.
func (l *Listener) Phrase() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phrase
}

// SetPhrase changes the wake phrase. Matching switches immediately; the
// recogniser hint follows on the next restart.
func (l *Listener) SetPhrase(p string) {
	l.mu.Lock()
	l.phrase = p
	cfg := l.configLocked()
	l.mu.Unlock()
	l.session.SetConfig(cfg)
}

// Status returns the state of the underlying recognition session.
func (l *Listener) Status() recognition.Status {
	return l.session.Status()
}

// Listening reports whether the listener is enabled, including while it is
// cooling down after a detection.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *Listener) handleResults(results []recognition.Result) {
	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		return
	}
	phrase := l.phrase
	matcher := l.matcher
	l.mu.Unlock()

	for _, r := range results {
		if !matcher.Match(r.Text, phrase) {
			continue
		}
		l.detected(r.Text)
		return
	}
}

func (l *Listener) detected(text string) {
	slog.Info("wakeword: wake phrase detected", "transcript", text)

	l.mu.Lock()
	ctx := l.ctx
	l.mu.Unlock()
	if l.metrics != nil {
		l.metrics.WakeDetections.Add(ctx, 1)
	}

	if l.onWake != nil {
		l.onWake()
	}

	l.session.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}
	if l.cooldownTimer != nil {
		l.cooldownTimer.Stop()
	}
	l.cooldownTimer = l.sched.AfterFunc(l.cooldown, l.resume)
}

func (l *Listener) resume() {
	l.mu.Lock()
	l.cooldownTimer = nil
	if !l.enabled || l.ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	ctx := l.ctx
	hook := l.beforeResume
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := l.session.Start(ctx); err != nil {
		slog.Warn("wakeword: resume after cooldown failed", "err", err)
		return
	}

	// Stop may have run after the check above and found the session idle.
	l.mu.Lock()
	enabled := l.enabled
	l.mu.Unlock()
	if !enabled {
		l.session.Stop()
	}
}

func (l *Listener) handleError(code string) {
	if code == recognition.CodeAudioCapture {
		return
	}
	slog.Debug("wakeword: recognition error", "code", code)
}
