package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/vesper/pkg/audio"
	"github.com/MrWong99/vesper/pkg/provider/llm"
	"github.com/MrWong99/vesper/pkg/provider/stt"
	"github.com/MrWong99/vesper/pkg/provider/tts"
)

// ─── LLM ─────────────────────────────────────────────────────────────────────

// LLMFallback is an [llm.Provider] that fails over across classification
// backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an LLMFallback preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	if cfg.Kind == "" {
		cfg.Kind = "llm"
	}
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) { f.group.AddFallback(name, p) }

// Names returns the backends in the order they are tried.
func (f *LLMFallback) Names() []string { return f.group.Names() }

// Complete implements [llm.Provider].
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// ─── STT ─────────────────────────────────────────────────────────────────────

// STTFallback is an [stt.Provider] that fails over when a backend refuses to
// open a stream. A stream that drops after opening is the recognition
// session's concern: it ends the run and the next restart tries again.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an STTFallback preferring primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *STTFallback) AddFallback(name string, p stt.Provider) { f.group.AddFallback(name, p) }

// StartStream implements [stt.Provider].
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Do(ctx, f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// ─── TTS ─────────────────────────────────────────────────────────────────────

// TTSFallback is a [tts.Provider] that fails over when a backend cannot start
// synthesis. Every backend must emit the same PCM format, so the speaker
// never has to care which one answered.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a TTSFallback preferring primary.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend. It fails when p's format differs
// from the primary's.
func (f *TTSFallback) AddFallback(name string, p tts.Provider) error {
	want, got := f.Format(), p.Format()
	if want != got {
		return fmt.Errorf("resilience: tts fallback %q emits %d Hz/%d ch, primary emits %d Hz/%d ch",
			name, got.SampleRate, got.Channels, want.SampleRate, want.Channels)
	}
	f.group.AddFallback(name, p)
	return nil
}

// Synthesize implements [tts.Provider].
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) (<-chan []byte, error) {
	return Do(ctx, f.group, func(p tts.Provider) (<-chan []byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// Format returns the primary's format, shared by every backend.
func (f *TTSFallback) Format() audio.Format { return f.group.Primary().Format() }
