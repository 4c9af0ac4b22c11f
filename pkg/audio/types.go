// Package audio defines the microphone input and speaker output abstractions
// used by the voice pipeline, plus PCM helpers shared by its consumers.
//
// The two primary abstractions are:
//
//   - [Source] grants access to a microphone and hands out [Stream] values,
//     one per consumer. Wake-word detection, dictation and the level monitor
//     each open their own stream so none of them starves the others.
//   - [Sink] plays synthesized speech back to the user.
//
// All audio is little-endian signed 16-bit PCM. Sample rate and channel count
// travel with every [Frame].
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is returned by [Source.Open] when the user or platform
// refuses microphone access.
var ErrPermissionDenied = errors.New("audio: microphone permission denied")

// ErrNoDevice is returned by [Source.Open] when no capture device is present.
var ErrNoDevice = errors.New("audio: no capture device available")

// ErrClosed is returned when operating on a closed source or sink.
var ErrClosed = errors.New("audio: closed")

// Frame is a single chunk of captured PCM audio.
type Frame struct {
	// Data holds int16 little-endian PCM samples.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT, 48000 for browser capture).
	SampleRate int

	// Channels is 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Stream is one consumer's view of a microphone. Frames are delivered on
// Frames until the stream or its parent source is closed, at which point the
// channel is closed.
type Stream interface {
	// Frames returns the read-only frame channel.
	Frames() <-chan Frame

	// Close detaches the stream from its source. Safe to call more than once.
	Close() error
}

// Source grants access to a microphone.
//
// Implementations must be safe for concurrent use; several consumers may open
// streams at the same time.
type Source interface {
	// Open returns a new [Stream]. It returns [ErrPermissionDenied] or
	// [ErrNoDevice] (possibly wrapped) when the microphone is unavailable.
	Open(ctx context.Context) (Stream, error)
}

// Sink plays PCM audio to the user.
type Sink interface {
	// Play consumes chunks until the channel is closed or ctx is cancelled.
	// It blocks until playback of the consumed audio has been handed off.
	Play(ctx context.Context, format Format, chunks <-chan []byte) error
}
