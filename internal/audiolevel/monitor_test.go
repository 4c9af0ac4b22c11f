package audiolevel_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/vesper/internal/audiolevel"
	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/pkg/audio"
	audiomock "github.com/MrWong99/vesper/pkg/audio/mock"
)

func constantPCM(sample int16, n int) []byte {
	out := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

func waitLevel(t *testing.T, m *audiolevel.Monitor, pred func(float64) bool) float64 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l := m.Level(); pred(l) {
			return l
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("level never satisfied predicate; last = %v", m.Level())
	return 0
}

func TestMonitor_ReportsNormalisedLevel(t *testing.T) {
	t.Parallel()
	src := audiomock.NewSource()
	levels := make(chan float64, 256)
	m := audiolevel.New(src,
		audiolevel.WithInterval(time.Millisecond),
		audiolevel.WithGain(1),
		audiolevel.OnLevel(func(l float64) {
			select {
			case levels <- l:
			default:
			}
		}),
	)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	src.Push(audio.Frame{Data: constantPCM(16384, 160), SampleRate: 16000, Channels: 1})
	got := waitLevel(t, m, func(l float64) bool { return l > 0 })
	if got < 0.49 || got > 0.51 {
		t.Errorf("level = %v, want 0.5", got)
	}
	select {
	case <-levels:
	case <-time.After(time.Second):
		t.Error("OnLevel never called")
	}
}

func TestMonitor_ClampsToOne(t *testing.T) {
	t.Parallel()
	src := audiomock.NewSource()
	m := audiolevel.New(src, audiolevel.WithInterval(time.Millisecond))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	src.Push(audio.Frame{Data: constantPCM(32767, 160), SampleRate: 16000, Channels: 1})
	if got := waitLevel(t, m, func(l float64) bool { return l > 0 }); got != 1 {
		t.Errorf("level = %v, want 1", got)
	}
}

func TestMonitor_StopResetsLevel(t *testing.T) {
	t.Parallel()
	src := audiomock.NewSource()
	var last float64 = -1
	m := audiolevel.New(src,
		audiolevel.WithInterval(time.Millisecond),
		audiolevel.OnLevel(func(l float64) { last = l }),
	)
	_ = m.Start(context.Background())
	src.Push(audio.Frame{Data: constantPCM(8000, 160), SampleRate: 16000, Channels: 1})
	waitLevel(t, m, func(l float64) bool { return l > 0 })

	m.Stop()
	if m.Running() {
		t.Error("Running() = true after Stop")
	}
	if got := m.Level(); got != 0 {
		t.Errorf("level after Stop = %v, want 0", got)
	}
	if last != 0 {
		t.Errorf("last OnLevel = %v, want 0", last)
	}
	if !src.Last().Closed() {
		t.Error("microphone stream not released")
	}
}

func TestMonitor_StartTwiceOpensOnce(t *testing.T) {
	t.Parallel()
	src := audiomock.NewSource()
	m := audiolevel.New(src)
	_ = m.Start(context.Background())
	_ = m.Start(context.Background())
	defer m.Stop()
	if got := src.Opened(); got != 1 {
		t.Errorf("streams opened = %d, want 1", got)
	}
}

func TestMonitor_Unavailable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"permission denied", audio.ErrPermissionDenied, true},
		{"no device", audio.ErrNoDevice, true},
		{"other", errors.New("driver crashed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := audiomock.NewSource()
			src.SetOpenErr(fmt.Errorf("open: %w", tt.err))
			m := audiolevel.New(src)

			err := m.Start(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, recognition.ErrCapabilityUnavailable); got != tt.unavailable {
				t.Errorf("errors.Is(err, ErrCapabilityUnavailable) = %v, want %v", got, tt.unavailable)
			}
			if m.Running() {
				t.Error("Running() = true after failed Start")
			}
		})
	}
}
