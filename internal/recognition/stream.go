package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/vesper/pkg/audio"
	"github.com/MrWong99/vesper/pkg/provider/stt"
)

// DefaultNoSpeechTimeout is how long a [StreamCapability] run waits for a
// transcript before giving up with [CodeNoSpeech].
const DefaultNoSpeechTimeout = 8 * time.Second

// hintBoost is the keyword boost applied to [Config.Hints].
const hintBoost = 2.0

var sttFormat = audio.Format{SampleRate: 16000, Channels: 1}

// StreamOption configures a [StreamCapability].
type StreamOption func(*StreamCapability)

// WithNoSpeechTimeout overrides [DefaultNoSpeechTimeout].
func WithNoSpeechTimeout(d time.Duration) StreamOption {
	return func(c *StreamCapability) { c.noSpeech = d }
}

// StreamCapability implements [Capability] on top of a streaming
// [stt.Provider] fed from an [audio.Source]. Each run opens its own
// microphone stream and STT session and tears both down when it ends.
//
// A run ends with:
//   - [CodeNoSpeech] when no transcript arrives within the no-speech timeout,
//   - [CodeAudioCapture] when the microphone stream closes,
//   - [CodeNetwork] when the STT session rejects audio,
//   - nothing but OnEnd after the first final in non-continuous mode or
//     after Stop.
type StreamCapability struct {
	provider stt.Provider
	source   audio.Source
	noSpeech time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStreamCapability creates a capability over p and src.
func NewStreamCapability(p stt.Provider, src audio.Source, opts ...StreamOption) *StreamCapability {
	c := &StreamCapability{
		provider: p,
		source:   src,
		noSpeech: DefaultNoSpeechTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start implements [Capability]. Any run still in progress is aborted first.
func (c *StreamCapability) Start(ctx context.Context, cfg Config, ev Events) error {
	c.Stop()

	stream, err := c.source.Open(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) || errors.Is(err, audio.ErrNoDevice) {
			return fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
		}
		return fmt.Errorf("recognition: open microphone: %w", err)
	}

	scfg := stt.StreamConfig{
		SampleRate: sttFormat.SampleRate,
		Channels:   sttFormat.Channels,
		Language:   cfg.Language,
		Interim:    cfg.Interim,
	}
	for _, h := range cfg.Hints {
		scfg.Keywords = append(scfg.Keywords, stt.KeywordBoost{Keyword: h, Boost: hintBoost})
	}
	handle, err := c.provider.StartStream(ctx, scfg)
	if err != nil {
		_ = stream.Close()
		return fmt.Errorf("recognition: start stt stream: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx, cancel, cfg, ev, stream, handle)
	return nil
}

// Stop implements [Capability]. It cancels the current run without waiting
// for it to finish.
func (c *StreamCapability) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *StreamCapability) run(ctx context.Context, cancel context.CancelFunc, cfg Config, ev Events, stream audio.Stream, handle stt.SessionHandle) {
	pumpErr := make(chan string, 1)
	var pumpDone sync.WaitGroup
	pumpDone.Add(1)
	go func() {
		defer pumpDone.Done()
		pump(ctx, stream, handle, pumpErr)
	}()

	defer func() {
		cancel()
		_ = stream.Close()
		if err := handle.Close(); err != nil {
			slog.Debug("recognition: close stt session", "err", err)
		}
		pumpDone.Wait()
		if ev.OnEnd != nil {
			ev.OnEnd()
		}
	}()

	if ev.OnStart != nil {
		ev.OnStart()
	}

	silence := time.NewTimer(c.noSpeech)
	defer silence.Stop()
	resetSilence := func() {
		if !silence.Stop() {
			select {
			case <-silence.C:
			default:
			}
		}
		silence.Reset(c.noSpeech)
	}

	emitError := func(code string) {
		if ev.OnError != nil {
			ev.OnError(code)
		}
	}
	emitResult := func(t stt.Transcript) {
		if ev.OnResult != nil {
			ev.OnResult([]Result{{Text: t.Text, IsFinal: t.IsFinal, Confidence: t.Confidence}})
		}
	}

	partials := handle.Partials()
	finals := handle.Finals()
	for {
		select {
		case <-ctx.Done():
			return

		case code := <-pumpErr:
			emitError(code)
			return

		case <-silence.C:
			emitError(CodeNoSpeech)
			return

		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if !cfg.Interim {
				continue
			}
			resetSilence()
			t.IsFinal = false
			emitResult(t)

		case t, ok := <-finals:
			if !ok {
				// The backend hung up; let the session decide whether to
				// restart.
				return
			}
			resetSilence()
			t.IsFinal = true
			emitResult(t)
			if !cfg.Continuous {
				return
			}
		}
	}
}

// pump forwards microphone frames to the STT session until ctx is done. A
// closed microphone or a failed send is reported on errs.
func pump(ctx context.Context, stream audio.Stream, handle stt.SessionHandle, errs chan<- string) {
	conv := &audio.Converter{Target: sttFormat}
	report := func(code string) {
		if ctx.Err() != nil {
			return
		}
		select {
		case errs <- code:
		default:
		}
	}
	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				report(CodeAudioCapture)
				return
			}
			f = conv.Convert(f)
			if len(f.Data) == 0 {
				continue
			}
			if err := handle.SendAudio(f.Data); err != nil {
				slog.Debug("recognition: send audio", "err", err)
				report(CodeNetwork)
				return
			}
		}
	}
}

var _ Capability = (*StreamCapability)(nil)
