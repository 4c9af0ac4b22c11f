// Package speech speaks assistant replies aloud.
//
// A [Speaker] owns at most one utterance at a time. Starting a new utterance
// or calling [Speaker.Cancel] stops the one on air, so replies never overlap
// and the wake word can always interrupt the assistant.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/pkg/audio"
	"github.com/MrWong99/vesper/pkg/provider/tts"
)

const (
	// DefaultRate is slightly slower than normal speech.
	DefaultRate = 0.9

	// DefaultPitch leaves the voice unchanged.
	DefaultPitch = 1.0
)

// Option configures a [Speaker].
type Option func(*Speaker)

// WithVoice sets the provider voice ID and language.
func WithVoice(id, language string) Option {
	return func(s *Speaker) {
		s.voice.ID = id
		s.voice.Language = language
	}
}

// WithRate sets the speaking-rate multiplier. Default: 0.9.
func WithRate(r float64) Option {
	return func(s *Speaker) { s.voice.Rate = r }
}

// WithPitch sets the pitch multiplier. Default: 1.0.
func WithPitch(p float64) Option {
	return func(s *Speaker) { s.voice.Pitch = p }
}

// WithMetrics records time-to-first-audio on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Speaker) { s.metrics = m }
}

// OnDone registers a callback fired when an utterance ends on its own,
// including synthesis or playback failure. It is not fired for utterances
// stopped by Speak or Cancel.
func OnDone(fn func()) Option {
	return func(s *Speaker) { s.onDone = fn }
}

// Speaker turns text into audio on a sink.
type Speaker struct {
	provider tts.Provider
	sink     audio.Sink
	metrics  *observe.Metrics
	onDone   func()

	mu     sync.Mutex
	voice  tts.Voice
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Speaker that synthesizes with provider and plays on sink.
func New(provider tts.Provider, sink audio.Sink, opts ...Option) *Speaker {
	s := &Speaker{
		provider: provider,
		sink:     sink,
		voice:    tts.Voice{Rate: DefaultRate, Pitch: DefaultPitch},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak starts saying text and returns immediately. Any utterance already on
// air is cancelled first. Blank text only cancels.
func (s *Speaker) Speak(ctx context.Context, text string) {
	s.mu.Lock()
	s.stopLocked()
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	voice := s.voice
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, gen, text, voice)
}

// Cancel stops the current utterance, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

// Speaking reports whether an utterance is on air.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SetRate changes the rate for subsequent utterances.
func (s *Speaker) SetRate(r float64) {
	s.mu.Lock()
	s.voice.Rate = r
	s.mu.Unlock()
}

// SetPitch changes the pitch for subsequent utterances.
func (s *Speaker) SetPitch(p float64) {
	s.mu.Lock()
	s.voice.Pitch = p
	s.mu.Unlock()
}

// Voice returns the voice used for the next utterance.
func (s *Speaker) Voice() tts.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// Close cancels the current utterance and waits for playback goroutines to
// exit.
func (s *Speaker) Close() {
	s.Cancel()
	s.wg.Wait()
}

func (s *Speaker) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (s *Speaker) run(ctx context.Context, gen uint64, text string, voice tts.Voice) {
	defer s.wg.Done()
	log := observe.Logger(ctx)
	start := time.Now()

	chunks, err := s.provider.Synthesize(ctx, text, voice)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("speech: synthesis failed", "err", err)
		}
		s.finish(gen)
		return
	}

	relay := make(chan []byte)
	go func() {
		defer close(relay)
		recorded := false
		for c := range chunks {
			if !recorded && s.metrics != nil {
				s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
				recorded = true
			}
			select {
			case relay <- c:
			case <-ctx.Done():
				audio.Drain(chunks)
				return
			}
		}
	}()

	err = s.sink.Play(ctx, s.provider.Format(), relay)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		log.Warn("speech: playback failed", "err", err)
	}
	s.finish(gen)
}

// finish clears the on-air state if gen is still current.
func (s *Speaker) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	onDone := s.onDone
	s.mu.Unlock()

	if onDone != nil {
		onDone()
	}
}
