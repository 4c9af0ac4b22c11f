// Package audiolevel samples microphone energy for visual feedback.
//
// The monitor holds its own microphone stream, independent of any
// recognition session, and on every tick reports the normalised RMS energy
// of the most recent frame.
package audiolevel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/pkg/audio"
)

const (
	// DefaultInterval is roughly one display refresh at 60 Hz.
	DefaultInterval = 16 * time.Millisecond

	// DefaultGain scales speech energy into the visible range.
	DefaultGain = 4.0
)

// Option configures a [Monitor].
type Option func(*Monitor)

// WithInterval sets the sampling period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithGain sets the multiplier applied before clamping to [0, 1].
func WithGain(g float64) Option {
	return func(m *Monitor) { m.gain = g }
}

// OnLevel registers a callback invoked on every tick with the current level.
func OnLevel(fn func(level float64)) Option {
	return func(m *Monitor) { m.onLevel = fn }
}

// Monitor reports microphone energy on a fixed cadence.
type Monitor struct {
	source   audio.Source
	interval time.Duration
	gain     float64
	onLevel  func(float64)

	mu     sync.Mutex
	latest []byte
	level  float64
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped monitor over src.
func New(src audio.Source, opts ...Option) *Monitor {
	m := &Monitor{
		source:   src,
		interval: DefaultInterval,
		gain:     DefaultGain,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start opens a microphone stream and begins sampling. A missing microphone
// or denied permission is reported as
// [recognition.ErrCapabilityUnavailable]. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	stream, err := m.source.Open(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) || errors.Is(err, audio.ErrNoDevice) {
			return fmt.Errorf("audiolevel: %w: %w", recognition.ErrCapabilityUnavailable, err)
		}
		return fmt.Errorf("audiolevel: open microphone: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, stream, m.done)
	return nil
}

// Stop ends sampling, releases the stream and resets the level to zero.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	m.mu.Lock()
	m.level = 0
	m.latest = nil
	m.mu.Unlock()
	if m.onLevel != nil {
		m.onLevel(0)
	}
}

// Running reports whether the monitor is sampling.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Level returns the most recent sampled level in [0, 1].
func (m *Monitor) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *Monitor) run(ctx context.Context, stream audio.Stream, done chan struct{}) {
	defer close(done)
	defer stream.Close()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				frames = nil
				m.mu.Lock()
				m.latest = nil
				m.mu.Unlock()
				continue
			}
			m.mu.Lock()
			m.latest = f.Data
			m.mu.Unlock()
		case <-ticker.C:
			m.mu.Lock()
			lvl := audio.Level(m.latest, m.gain)
			m.level = lvl
			m.mu.Unlock()
			if m.onLevel != nil {
				m.onLevel(lvl)
			}
		}
	}
}
