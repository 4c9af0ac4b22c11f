// Package stt defines the Provider interface for streaming speech recognition
// backends.
//
// A provider turns a stream of PCM audio into two channels of [Transcript]
// values: interim partials that may still change, and finals the backend has
// committed to. The recognition layer above maps these onto its own result
// callbacks and layers restart/no-speech semantics on top.
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by [SessionHandle.SendAudio] after Close.
var ErrSessionClosed = errors.New("stt: session closed")

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate in Hz. Zero selects the provider default (usually 16000).
	SampleRate int

	// Channels is 1 for mono. Most backends require mono.
	Channels int

	// Language is a BCP-47 tag such as "en-US". Empty lets the provider decide.
	Language string

	// Interim requests partial results in addition to finals.
	Interim bool

	// Keywords biases recognition toward the given terms. The wake-word
	// listener boosts its wake phrase this way.
	Keywords []KeywordBoost
}

// SessionHandle is an open streaming recognition session.
//
// Callers must call Close when done. All methods are safe for concurrent use.
type SessionHandle interface {
	// SendAudio queues a PCM chunk in the format agreed in [StreamConfig].
	// Returns [ErrSessionClosed] (possibly wrapped) after Close or after the
	// backend connection dropped.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits committed transcripts. Closed when the session ends.
	Finals() <-chan Transcript

	// Close flushes pending audio and releases the backend connection.
	// Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
type Provider interface {
	// StartStream opens a new session. The returned handle accepts audio
	// immediately. Errors indicate the backend could not be reached or
	// rejected the configuration.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
