// Package pipeline wires the voice round trip together:
//
//	wake word → dictation → classify → execute → speak + notify
//
// A [Pipeline] owns a wake-word listener and a dictation session, each over
// its own recognition capability. Classification, execution and speech are
// injected, so the pipeline holds no global state and tests can drive it
// with mocks.
//
// State machine:
//
//	idle ──wake──► listening ──final transcript──► processing ──reply──► speaking
//	                   ▲                                │                    │
//	                   └────────── no reply ────────────┘◄──── speech done ──┘
//
// Disabling voice returns to idle from anywhere. A round that was in flight
// when voice was disabled is discarded: it produces neither speech nor
// store changes that had not happened yet.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/vesper/internal/dictation"
	"github.com/MrWong99/vesper/internal/intent"
	"github.com/MrWong99/vesper/internal/notify"
	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/internal/wakeword"
)

// Notification texts.
const (
	WakeAcknowledgement = "Yes, I'm listening. How can I help?"
	RecognitionFailed   = "Couldn't understand that. Please try again."
)

// State is the externally visible pipeline phase.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
)

// Classifier maps an utterance to an intent. It must not fail.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Intent
}

// Executor performs an intent and returns the reply to speak.
type Executor interface {
	Execute(ctx context.Context, in intent.Intent) string
}

// Speaker says replies aloud. Speak must not block on playback.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Cancel()
}

// Deps are the collaborators a pipeline is built from.
type Deps struct {
	// Wake and Dictation must be distinct capability instances.
	Wake      recognition.Capability
	Dictation recognition.Capability

	Classifier Classifier
	Executor   Executor

	// Speaker may be nil, in which case replies are only returned from
	// Command and never spoken.
	Speaker Speaker

	// Notifier may be nil.
	Notifier notify.Sink
}

// Validate reports missing dependencies.
func (d Deps) Validate() error {
	var errs []error
	if d.Wake == nil {
		errs = append(errs, errors.New("wake capability is required"))
	}
	if d.Dictation == nil {
		errs = append(errs, errors.New("dictation capability is required"))
	}
	if d.Wake != nil && d.Wake == d.Dictation {
		errs = append(errs, errors.New("wake and dictation must use separate capabilities"))
	}
	if d.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if d.Executor == nil {
		errs = append(errs, errors.New("executor is required"))
	}
	return errors.Join(errs...)
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithWakeOptions forwards options to the wake-word listener.
func WithWakeOptions(opts ...wakeword.Option) Option {
	return func(p *Pipeline) { p.wakeOpts = append(p.wakeOpts, opts...) }
}

// WithDictationOptions forwards options to the dictation session.
func WithDictationOptions(opts ...dictation.Option) Option {
	return func(p *Pipeline) { p.dictOpts = append(p.dictOpts, opts...) }
}

// OnState registers a callback for every state change. It runs on the
// goroutine that caused the change and must not block.
func OnState(fn func(State)) Option {
	return func(p *Pipeline) { p.onState = fn }
}

// OnInterim registers a callback for live dictation text. An empty string
// clears the display.
func OnInterim(fn func(text string)) Option {
	return func(p *Pipeline) { p.onInterim = fn }
}

// Pipeline runs the voice round trip.
type Pipeline struct {
	classifier Classifier
	executor   Executor
	speaker    Speaker
	notifier   notify.Sink
	onState    func(State)
	onInterim  func(string)
	wakeOpts   []wakeword.Option
	dictOpts   []dictation.Option

	wake *wakeword.Listener
	dict *dictation.Session

	mu          sync.Mutex
	ctx         context.Context
	enabled     bool
	epoch       uint64
	state       State
	errNotified bool
}

// New builds a pipeline from d. Voice starts disabled; call Enable.
func New(d Deps, opts ...Option) (*Pipeline, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p := &Pipeline{
		classifier: d.Classifier,
		executor:   d.Executor,
		speaker:    d.Speaker,
		notifier:   d.Notifier,
		ctx:        context.Background(),
		state:      StateIdle,
	}
	if p.notifier == nil {
		p.notifier = notify.Discard
	}
	for _, o := range opts {
		o(p)
	}

	p.wake = wakeword.New(d.Wake, p.handleWake, p.wakeOpts...)
	dictOpts := append([]dictation.Option{
		dictation.OnInterim(p.interim),
		dictation.OnError(p.handleDictationError),
	}, p.dictOpts...)
	p.dict = dictation.New(d.Dictation, p.handleTranscript, dictOpts...)
	return p, nil
}

// Enable turns voice on and starts listening for the wake word. It is a
// no-op when voice is already on.
func (p *Pipeline) Enable(ctx context.Context) error {
	p.mu.Lock()
	if p.enabled {
		p.mu.Unlock()
		return nil
	}
	p.enabled = true
	p.epoch++
	p.ctx = ctx
	p.errNotified = false
	p.mu.Unlock()

	observe.Logger(ctx).Info("pipeline: voice enabled", "wake_phrase", p.wake.Phrase())
	if err := p.wake.Start(ctx); err != nil {
		return fmt.Errorf("pipeline: start wake word: %w", err)
	}
	return nil
}

// Disable turns voice off. Listening stops, speech is cut, and any round in
// flight is discarded.
func (p *Pipeline) Disable() {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	p.enabled = false
	p.epoch++
	ctx := p.ctx
	p.mu.Unlock()

	p.wake.Stop()
	p.dict.Deactivate()
	if p.speaker != nil {
		p.speaker.Cancel()
	}
	p.setState(StateIdle)
	observe.Logger(ctx).Info("pipeline: voice disabled")
}

// SetEnabled calls Enable or Disable.
func (p *Pipeline) SetEnabled(ctx context.Context, on bool) error {
	if on {
		return p.Enable(ctx)
	}
	p.Disable()
	return nil
}

// Enabled reports whether voice is on.
func (p *Pipeline) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// State returns the current phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetWakePhrase changes the wake phrase.
func (p *Pipeline) SetWakePhrase(phrase string) { p.wake.SetPhrase(phrase) }

// WakePhrase returns the current wake phrase.
func (p *Pipeline) WakePhrase() string { return p.wake.Phrase() }

// WakeStatus returns the state of the wake-word recogniser.
func (p *Pipeline) WakeStatus() recognition.Status { return p.wake.Status() }

// Command runs a typed command through classification and execution. The
// reply is returned, not spoken.
func (p *Pipeline) Command(ctx context.Context, text string) (intent.Intent, string) {
	ctx, span := observe.StartSpan(ctx, "pipeline.command")
	defer span.End()
	in := p.classifier.Classify(ctx, text)
	reply := p.executor.Execute(ctx, in)
	span.SetAttributes(attribute.String("intent.kind", string(in.Kind())))
	return in, reply
}

// SpeechDone tells the pipeline the current reply finished playing. Wire it
// to the speaker's completion callback.
func (p *Pipeline) SpeechDone() {
	p.mu.Lock()
	if p.state != StateSpeaking {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.setState(p.restingState())
}

// Close disables voice and releases both recognition sessions.
func (p *Pipeline) Close() error {
	p.Disable()
	return errors.Join(p.wake.Close(), p.dict.Close())
}

// ─── Event handlers ──────────────────────────────────────────────────────────

func (p *Pipeline) handleWake() {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.errNotified = false
	p.mu.Unlock()

	if p.speaker != nil {
		p.speaker.Cancel()
	}
	p.notifier.Notify(ctx, notify.Notification{Title: WakeAcknowledgement, Severity: notify.SeverityInfo})
	if err := p.dict.Activate(ctx); err != nil {
		observe.Logger(ctx).Warn("pipeline: activate dictation", "err", err)
		if errors.Is(err, recognition.ErrCapabilityUnavailable) {
			p.setState(StateIdle)
			return
		}
	}
	p.setState(StateListening)
}

func (p *Pipeline) handleTranscript(_ context.Context, t dictation.Transcript) {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	epoch := p.epoch
	ctx := p.ctx
	p.errNotified = false
	p.mu.Unlock()

	log := observe.Logger(ctx)
	ctx, span := observe.StartSpan(ctx, "pipeline.round")
	defer span.End()

	p.setState(StateProcessing)
	in := p.classifier.Classify(ctx, t.Text)
	span.SetAttributes(attribute.String("intent.kind", string(in.Kind())))
	if !p.current(epoch) {
		log.Debug("pipeline: discarding round after voice was disabled", "stage", "classify")
		return
	}

	reply := p.executor.Execute(ctx, in)
	if !p.current(epoch) {
		log.Debug("pipeline: discarding round after voice was disabled", "stage", "execute")
		return
	}
	log.Info("pipeline: round complete", "kind", in.Kind(), "reply", reply)

	if p.speaker == nil || reply == "" {
		p.setState(p.restingState())
		return
	}
	p.setState(StateSpeaking)
	p.speaker.Speak(ctx, reply)
}

func (p *Pipeline) handleDictationError(code string) {
	p.mu.Lock()
	if !p.enabled || p.errNotified {
		p.mu.Unlock()
		return
	}
	p.errNotified = true
	ctx := p.ctx
	p.mu.Unlock()

	p.notifier.Notify(ctx, notify.Notification{Title: RecognitionFailed, Severity: notify.SeverityDestructive})
}

func (p *Pipeline) interim(text string) {
	if p.onInterim != nil {
		p.onInterim(text)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (p *Pipeline) current(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled && p.epoch == epoch
}

func (p *Pipeline) restingState() State {
	if p.dict.Active() {
		return StateListening
	}
	return StateIdle
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	if p.state == s {
		p.mu.Unlock()
		return
	}
	p.state = s
	p.mu.Unlock()
	if p.onState != nil {
		p.onState(s)
	}
}
