package recognition_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/internal/recognition/mock"
)

const delay = 500 * time.Millisecond

type harness struct {
	cap   *mock.Capability
	sched *mock.Scheduler
	sess  *recognition.Session

	mu      sync.Mutex
	results [][]recognition.Result
	errs    []string
}

func newHarness(t *testing.T, opts ...recognition.Option) *harness {
	t.Helper()
	h := &harness{cap: &mock.Capability{}, sched: &mock.Scheduler{}}
	base := []recognition.Option{
		recognition.WithName("test"),
		recognition.WithScheduler(h.sched),
		recognition.WithRestartDelay(delay),
		recognition.OnResult(func(r []recognition.Result) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.results = append(h.results, r)
		}),
		recognition.OnError(func(code string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errs = append(h.errs, code)
		}),
	}
	h.sess = recognition.NewSession(h.cap, append(base, opts...)...)
	t.Cleanup(func() { _ = h.sess.Close() })
	return h
}

func (h *harness) forwardedErrors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.errs...)
}

func (h *harness) resultCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func TestStatus_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		s    recognition.Status
		want string
	}{
		{recognition.StatusIdle, "idle"},
		{recognition.StatusStarting, "starting"},
		{recognition.StatusActive, "active"},
		{recognition.StatusStopping, "stopping"},
		{recognition.StatusErrored, "errored"},
		{recognition.Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestSession_StartTransitions(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithConfig(recognition.Config{Continuous: true, Interim: true, Hints: []string{"hey louis"}}))

	if got := h.sess.Status(); got != recognition.StatusIdle {
		t.Fatalf("initial status = %v, want idle", got)
	}
	if err := h.sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := h.sess.Status(); got != recognition.StatusStarting {
		t.Errorf("status after Start = %v, want starting", got)
	}
	h.cap.FireStart()
	if got := h.sess.Status(); got != recognition.StatusActive {
		t.Errorf("status after OnStart = %v, want active", got)
	}
	cfg := h.cap.LastConfig()
	if !cfg.Continuous || !cfg.Interim || len(cfg.Hints) != 1 || cfg.Hints[0] != "hey louis" {
		t.Errorf("capability config = %+v", cfg)
	}
}

func TestSession_StartIsNoOpUnlessIdle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_ = h.sess.Start(ctx)
	_ = h.sess.Start(ctx)
	h.cap.FireStart()
	_ = h.sess.Start(ctx)

	if got := h.cap.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1", got)
	}
}

func TestSession_StopIsNoOpWhenIdle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sess.Stop()
	if got := h.cap.Stops(); got != 0 {
		t.Errorf("capability stops = %d, want 0", got)
	}
	if got := h.sess.Status(); got != recognition.StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
}

func TestSession_AutoRestartAfterDelay(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.cap.FireEnd()

	if got := h.sess.Status(); got != recognition.StatusIdle {
		t.Fatalf("status after end = %v, want idle", got)
	}
	if got := h.sched.Pending(); got != 1 {
		t.Fatalf("pending timers = %d, want 1", got)
	}

	h.sched.Advance(delay - time.Millisecond)
	if got := h.cap.Starts(); got != 1 {
		t.Fatalf("restarted before delay elapsed: starts = %d", got)
	}

	h.sched.Advance(time.Millisecond)
	if got := h.cap.Starts(); got != 2 {
		t.Fatalf("starts after delay = %d, want 2", got)
	}
	if got := h.sess.Status(); got != recognition.StatusStarting {
		t.Errorf("status after restart = %v, want starting", got)
	}
}

func TestSession_NoRestartWithoutAutoRestart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.cap.FireEnd()

	if got := h.sched.Pending(); got != 0 {
		t.Errorf("pending timers = %d, want 0", got)
	}
}

func TestSession_StopSuppressesLateEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.sess.Stop()

	if got := h.cap.Stops(); got != 1 {
		t.Errorf("capability stops = %d, want 1", got)
	}
	if got := h.sess.Status(); got != recognition.StatusIdle {
		t.Errorf("status after Stop = %v, want idle", got)
	}

	// The capability reports its end after Stop returned.
	h.cap.FireEnd()
	h.sched.Advance(10 * delay)

	if got := h.sched.Pending(); got != 0 {
		t.Errorf("pending timers = %d, want 0", got)
	}
	if got := h.cap.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1", got)
	}
}

func TestSession_StopCancelsPendingRestart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.cap.FireEnd()
	h.sess.Stop()
	h.sched.Advance(delay)

	if got := h.cap.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1", got)
	}
}

func TestSession_StartAfterStopReenablesRestart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))
	ctx := context.Background()

	_ = h.sess.Start(ctx)
	h.cap.FireStart()
	h.sess.Stop()
	_ = h.sess.Start(ctx)
	h.cap.FireStart()
	h.cap.FireEnd()
	h.sched.Advance(delay)

	if got := h.cap.Starts(); got != 3 {
		t.Errorf("capability starts = %d, want 3", got)
	}
}

func TestSession_StaleEventsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))
	ctx := context.Background()

	_ = h.sess.Start(ctx)
	h.cap.FireStart()
	h.sess.Stop()
	_ = h.sess.Start(ctx)

	old := h.cap.Events(0)
	old.OnStart()
	old.OnResult([]recognition.Result{{Text: "stale", IsFinal: true}})
	old.OnError(recognition.CodeNetwork)
	old.OnEnd()

	if got := h.sess.Status(); got != recognition.StatusStarting {
		t.Errorf("status = %v, want starting", got)
	}
	if got := h.resultCount(); got != 0 {
		t.Errorf("results delivered = %d, want 0", got)
	}
	if got := h.forwardedErrors(); len(got) != 0 {
		t.Errorf("errors forwarded = %v, want none", got)
	}
	if got := h.sched.Pending(); got != 0 {
		t.Errorf("pending timers = %d, want 0", got)
	}
}

func TestSession_CapabilityUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))
	h.cap.SetStartErr(errors.Join(recognition.ErrCapabilityUnavailable, errors.New("no microphone")))

	err := h.sess.Start(context.Background())
	var se *recognition.StartError
	if !errors.As(err, &se) {
		t.Fatalf("Start error = %v, want *StartError", err)
	}
	if se.Session != "test" {
		t.Errorf("StartError.Session = %q, want %q", se.Session, "test")
	}
	if !errors.Is(err, recognition.ErrCapabilityUnavailable) {
		t.Errorf("errors.Is(err, ErrCapabilityUnavailable) = false")
	}
	if got := h.sess.Status(); got != recognition.StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if h.sess.LastError() == "" {
		t.Error("LastError is empty after failed start")
	}
	h.sched.Advance(10 * delay)
	if got := h.cap.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1 (no retry)", got)
	}
}

func TestSession_FailedRestartNotRetried(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.cap.SetStartErr(errors.New("backend unreachable"))
	h.cap.FireEnd()
	h.sched.Advance(delay)

	if got := h.cap.Starts(); got != 2 {
		t.Fatalf("capability starts = %d, want 2", got)
	}
	if got := h.sess.Status(); got != recognition.StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if got := h.sched.Pending(); got != 0 {
		t.Errorf("pending timers = %d, want 0", got)
	}
}

func TestSession_ErrorHandling(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code      string
		forwarded bool
	}{
		{recognition.CodeNoSpeech, false},
		{recognition.CodeAborted, true},
		{recognition.CodeAudioCapture, true},
		{recognition.CodeNetwork, true},
		{recognition.CodeNotAllowed, true},
		{recognition.CodeServiceNotAllowed, true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, recognition.WithAutoRestart(true))

			_ = h.sess.Start(context.Background())
			h.cap.FireStart()
			h.cap.FireError(tt.code)

			if got := h.sess.Status(); got != recognition.StatusErrored {
				t.Errorf("status = %v, want errored", got)
			}
			if got := h.sess.LastError(); got != tt.code {
				t.Errorf("LastError = %q, want %q", got, tt.code)
			}
			errs := h.forwardedErrors()
			if tt.forwarded && (len(errs) != 1 || errs[0] != tt.code) {
				t.Errorf("forwarded = %v, want [%s]", errs, tt.code)
			}
			if !tt.forwarded && len(errs) != 0 {
				t.Errorf("forwarded = %v, want none", errs)
			}

			// Errors are followed by an end, which still restarts.
			h.cap.FireEnd()
			h.sched.Advance(delay)
			if got := h.cap.Starts(); got != 2 {
				t.Errorf("capability starts = %d, want 2", got)
			}
		})
	}
}

func TestSession_LastErrorClearedOnStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.cap.FireError(recognition.CodeNetwork)
	h.cap.FireEnd()
	h.sched.Advance(delay)
	h.cap.FireStart()

	if got := h.sess.LastError(); got != "" {
		t.Errorf("LastError = %q, want empty", got)
	}
}

func TestSession_CloseCancelsEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))
	ctx := context.Background()

	_ = h.sess.Start(ctx)
	h.cap.FireStart()
	h.cap.FireEnd()
	if err := h.sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	h.sched.Advance(delay)

	if got := h.cap.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1", got)
	}
	if err := h.sess.Start(ctx); !errors.Is(err, recognition.ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestSession_CancelledContextStopsRestarts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true))
	ctx, cancel := context.WithCancel(context.Background())

	_ = h.sess.Start(ctx)
	h.cap.FireStart()
	h.cap.FireEnd()
	cancel()
	h.sched.Advance(delay)

	if got := h.cap.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1", got)
	}
}

func TestSession_StopFromResultCallback(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	sched := &mock.Scheduler{}
	var sess *recognition.Session
	sess = recognition.NewSession(c,
		recognition.WithScheduler(sched),
		recognition.WithAutoRestart(true),
		recognition.OnResult(func([]recognition.Result) { sess.Stop() }),
	)

	_ = sess.Start(context.Background())
	if got := sess.Status(); got != recognition.StatusActive {
		t.Fatalf("status = %v, want active", got)
	}

	done := make(chan struct{})
	go func() {
		c.FireResult(recognition.Result{Text: "hello"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop inside OnResult deadlocked")
	}
	if got := sess.Status(); got != recognition.StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
}

func TestSession_StatusCallback(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{}
	var (
		mu   sync.Mutex
		seen []recognition.Status
	)
	sess := recognition.NewSession(c, recognition.OnStatus(func(s recognition.Status) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	}))

	_ = sess.Start(context.Background())
	c.FireStart()
	sess.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []recognition.Status{
		recognition.StatusStarting,
		recognition.StatusActive,
		recognition.StatusStopping,
		recognition.StatusIdle,
	}
	if len(seen) != len(want) {
		t.Fatalf("statuses = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("statuses[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestSession_SetConfigAppliesOnRestart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, recognition.WithAutoRestart(true), recognition.WithConfig(recognition.Config{Language: "en-US"}))

	_ = h.sess.Start(context.Background())
	h.cap.FireStart()
	h.sess.SetConfig(recognition.Config{Language: "de-DE"})
	if got := h.cap.LastConfig().Language; got != "en-US" {
		t.Errorf("running language = %q, want en-US", got)
	}
	h.cap.FireEnd()
	h.sched.Advance(delay)
	if got := h.cap.LastConfig().Language; got != "de-DE" {
		t.Errorf("restarted language = %q, want de-DE", got)
	}
}
