package wakeword_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/internal/recognition/mock"
	"github.com/MrWong99/vesper/internal/wakeword"
)

func newListener(t *testing.T, opts ...wakeword.Option) (*wakeword.Listener, *mock.Capability, *mock.Scheduler, *atomic.Int32) {
	t.Helper()
	c := &mock.Capability{AutoStart: true}
	sched := &mock.Scheduler{}
	var wakes atomic.Int32
	l := wakeword.New(c, func() { wakes.Add(1) }, append([]wakeword.Option{wakeword.WithScheduler(sched)}, opts...)...)
	t.Cleanup(func() { _ = l.Close() })
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return l, c, sched, &wakes
}

func TestListener_ConfiguresContinuousInterim(t *testing.T) {
	t.Parallel()
	_, c, _, _ := newListener(t, wakeword.WithLanguage("en-US"))

	cfg := c.LastConfig()
	if !cfg.Continuous || !cfg.Interim {
		t.Errorf("config = %+v, want continuous interim", cfg)
	}
	if cfg.Language != "en-US" {
		t.Errorf("language = %q, want en-US", cfg.Language)
	}
	if len(cfg.Hints) != 1 || cfg.Hints[0] != wakeword.DefaultPhrase {
		t.Errorf("hints = %v, want [%s]", cfg.Hints, wakeword.DefaultPhrase)
	}
}

func TestListener_DetectsOncePerBatch(t *testing.T) {
	t.Parallel()
	l, c, _, wakes := newListener(t)

	c.FireResult(
		recognition.Result{Text: "um hey"},
		recognition.Result{Text: "Hey Louis what's up"},
		recognition.Result{Text: "hey louis again"},
	)

	if got := wakes.Load(); got != 1 {
		t.Errorf("wake callbacks = %d, want 1", got)
	}
	if got := c.Stops(); got != 1 {
		t.Errorf("capability stops = %d, want 1", got)
	}
	if got := l.Status(); got != recognition.StatusIdle {
		t.Errorf("status during cooldown = %v, want idle", got)
	}
	if !l.Listening() {
		t.Error("listener disabled by detection")
	}
}

func TestListener_CallbackRunsBeforeStop(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	stopsAtWake := -1
	l := wakeword.New(c, func() { stopsAtWake = c.Stops() }, wakeword.WithScheduler(&mock.Scheduler{}))
	t.Cleanup(func() { _ = l.Close() })
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.FireResult(recognition.Result{Text: "hey louis"})

	if stopsAtWake != 0 {
		t.Errorf("capability stops seen by callback = %d, want 0", stopsAtWake)
	}
	if got := c.Stops(); got != 1 {
		t.Errorf("capability stops after detection = %d, want 1", got)
	}
}

func TestListener_InterimResultsTrigger(t *testing.T) {
	t.Parallel()
	_, c, _, wakes := newListener(t)

	c.FireResult(recognition.Result{Text: "hey lou", IsFinal: false})
	c.FireResult(recognition.Result{Text: "hey louis", IsFinal: false})

	if got := wakes.Load(); got != 1 {
		t.Errorf("wake callbacks = %d, want 1", got)
	}
}

func TestListener_ResumesAfterCooldown(t *testing.T) {
	t.Parallel()
	_, c, sched, _ := newListener(t, wakeword.WithCooldown(2*time.Second))

	c.FireResult(recognition.Result{Text: "hey louis"})
	// The stopped run reports its end late; only the cooldown may restart.
	c.FireEnd()

	sched.Advance(1999 * time.Millisecond)
	if got := c.Starts(); got != 1 {
		t.Fatalf("starts before cooldown = %d, want 1", got)
	}
	sched.Advance(time.Millisecond)
	if got := c.Starts(); got != 2 {
		t.Fatalf("starts after cooldown = %d, want 2", got)
	}
}

func TestListener_StopCancelsCooldown(t *testing.T) {
	t.Parallel()
	l, c, sched, _ := newListener(t)

	c.FireResult(recognition.Result{Text: "hey louis"})
	l.Stop()
	sched.Advance(time.Minute)

	if got := c.Starts(); got != 1 {
		t.Errorf("starts = %d, want 1", got)
	}
	if l.Listening() {
		t.Error("Listening() = true after Stop")
	}
}

func TestListener_IgnoresResultsWhileStopped(t *testing.T) {
	t.Parallel()
	l, c, _, wakes := newListener(t)
	l.Stop()

	c.FireResult(recognition.Result{Text: "hey louis"})
	if got := wakes.Load(); got != 0 {
		t.Errorf("wake callbacks = %d, want 0", got)
	}
}

func TestListener_RestartsAfterSpontaneousEnd(t *testing.T) {
	t.Parallel()
	_, c, sched, _ := newListener(t)

	for _, code := range []string{recognition.CodeNoSpeech, recognition.CodeAudioCapture, recognition.CodeNetwork} {
		c.FireError(code)
		c.FireEnd()
		sched.Advance(wakeword.DefaultRestartDelay)
	}
	if got := c.Starts(); got != 4 {
		t.Errorf("starts = %d, want 4", got)
	}
}

func TestListener_SetPhrase(t *testing.T) {
	t.Parallel()
	l, c, sched, wakes := newListener(t)

	l.SetPhrase("ok vesper")
	if got := l.Phrase(); got != "ok vesper" {
		t.Errorf("Phrase() = %q", got)
	}
	c.FireResult(recognition.Result{Text: "hey louis"})
	if got := wakes.Load(); got != 0 {
		t.Fatalf("old phrase still triggers")
	}
	c.FireResult(recognition.Result{Text: "OK Vesper turn on"})
	if got := wakes.Load(); got != 1 {
		t.Fatalf("wake callbacks = %d, want 1", got)
	}

	c.FireEnd()
	sched.Advance(wakeword.DefaultCooldown)
	if hints := c.LastConfig().Hints; len(hints) != 1 || hints[0] != "ok vesper" {
		t.Errorf("hints after restart = %v", hints)
	}
}
