// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider turns one utterance into a stream of PCM chunks so playback can
// begin before synthesis has finished. Chunks are in the [audio.Format]
// reported by the provider.
package tts

import (
	"context"

	"github.com/MrWong99/vesper/pkg/audio"
)

// Voice selects and shapes the synthesized voice.
type Voice struct {
	// ID is the provider-specific voice identifier. Empty selects the
	// provider default.
	ID string

	// Language is a BCP-47 tag such as "en-US".
	Language string

	// Rate is the speaking-rate multiplier; 1.0 is normal speed. Providers
	// clamp it to their supported range.
	Rate float64

	// Pitch is the pitch multiplier; 1.0 is unchanged. Providers without
	// pitch control ignore it.
	Pitch float64
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Synthesize starts synthesis of text and returns a channel of PCM
	// chunks. The channel is closed when synthesis completes, fails, or ctx
	// is cancelled. A non-nil error means synthesis could not start.
	Synthesize(ctx context.Context, text string, voice Voice) (<-chan []byte, error)

	// Format reports the PCM format of emitted chunks.
	Format() audio.Format
}
