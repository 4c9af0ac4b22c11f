// Package mock provides in-memory mock implementations of the [audio.Source],
// [audio.Stream], and [audio.Sink] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	src := mock.NewSource()
//	stream, _ := src.Open(ctx)
//	src.Push(audio.Frame{Data: pcm, SampleRate: 16000, Channels: 1})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vesper/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream] backed by a buffered
// channel. Frames are fed through [Source.Push] or [Stream.Push].
type Stream struct {
	mu     sync.Mutex
	ch     chan audio.Frame
	closed bool

	// CloseCount records how many times Close was called.
	CloseCount int
}

func newStream() *Stream {
	return &Stream{ch: make(chan audio.Frame, 64)}
}

// Frames implements [audio.Stream].
func (s *Stream) Frames() <-chan audio.Frame { return s.ch }

// Push delivers f to the stream. Frames pushed after Close are dropped, as are
// frames that would overflow the buffer.
func (s *Stream) Push(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- f:
	default:
	}
}

// Close implements [audio.Stream]. Closes the frame channel on first call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. Every successful Open
// returns a fresh [Stream] which is recorded in Streams.
type Source struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned by Open instead of a stream.
	OpenErr error

	// OpenCount records how many times Open was called.
	OpenCount int

	// Streams holds every stream returned by Open, in order.
	Streams []*Stream
}

// NewSource returns an empty mock source.
func NewSource() *Source { return &Source{} }

// Open implements [audio.Source].
func (s *Source) Open(_ context.Context) (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenCount++
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	st := newStream()
	s.Streams = append(s.Streams, st)
	return st, nil
}

// SetOpenErr changes the error returned by subsequent Open calls.
func (s *Source) SetOpenErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenErr = err
}

// Push delivers f to every open stream.
func (s *Source) Push(f audio.Frame) {
	s.mu.Lock()
	streams := make([]*Stream, len(s.Streams))
	copy(streams, s.Streams)
	s.mu.Unlock()
	for _, st := range streams {
		st.Push(f)
	}
}

// CloseAll closes every stream handed out so far, simulating the device
// going away.
func (s *Source) CloseAll() {
	s.mu.Lock()
	streams := make([]*Stream, len(s.Streams))
	copy(streams, s.Streams)
	s.mu.Unlock()
	for _, st := range streams {
		_ = st.Close()
	}
}

// Opened returns the number of successful Open calls.
func (s *Source) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Streams)
}

// Last returns the most recently opened stream, or nil.
func (s *Source) Last() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Streams) == 0 {
		return nil
	}
	return s.Streams[len(s.Streams)-1]
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// PlayCall records a single [Sink.Play] invocation.
type PlayCall struct {
	Format audio.Format
	Chunks [][]byte
	// Cancelled is true when ctx was done before the chunk channel closed.
	Cancelled bool
}

// Sink is a mock implementation of [audio.Sink]. Play drains the chunk
// channel and records everything it read.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play after draining.
	PlayErr error

	// Block, if non-nil, makes Play wait until the channel is closed or ctx
	// is cancelled before draining chunks. Tests use it to hold an utterance
	// "on air".
	Block chan struct{}

	// Calls records all Play invocations.
	Calls []PlayCall
}

// Play implements [audio.Sink].
func (s *Sink) Play(ctx context.Context, format audio.Format, chunks <-chan []byte) error {
	s.mu.Lock()
	block := s.Block
	s.mu.Unlock()

	call := PlayCall{Format: format}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			call.Cancelled = true
			go audio.Drain(chunks)
			s.record(call)
			return ctx.Err()
		}
	}
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				s.record(call)
				s.mu.Lock()
				defer s.mu.Unlock()
				return s.PlayErr
			}
			call.Chunks = append(call.Chunks, c)
		case <-ctx.Done():
			call.Cancelled = true
			go audio.Drain(chunks)
			s.record(call)
			return ctx.Err()
		}
	}
}

func (s *Sink) record(c PlayCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, c)
}

// PlayCalls returns a snapshot of recorded Play invocations.
func (s *Sink) PlayCalls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.Calls))
	copy(out, s.Calls)
	return out
}

// Compile-time interface assertions.
var (
	_ audio.Source = (*Source)(nil)
	_ audio.Stream = (*Stream)(nil)
	_ audio.Sink   = (*Sink)(nil)
)
