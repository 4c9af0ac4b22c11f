package dictation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vesper/internal/dictation"
	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/internal/recognition/mock"
)

// gatedHandler records transcripts and blocks each call until released.
type gatedHandler struct {
	mu       sync.Mutex
	texts    []string
	inFlight int
	maxSeen  int
	release  chan struct{}
	entered  chan string
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{release: make(chan struct{}), entered: make(chan string, 16)}
}

func (g *gatedHandler) handle(ctx context.Context, t dictation.Transcript) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	g.texts = append(g.texts, t.Text)
	g.mu.Unlock()

	g.entered <- t.Text
	select {
	case <-g.release:
	case <-ctx.Done():
	}

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
}

func (g *gatedHandler) waitEntered(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-g.entered:
		if got != want {
			t.Fatalf("handler got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never received %q", want)
	}
}

func TestSession_FinalsProcessedSequentially(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	g := newGatedHandler()
	s := dictation.New(c, g.handle, dictation.WithScheduler(&mock.Scheduler{}))
	t.Cleanup(func() {
		close(g.release)
		_ = s.Close()
	})

	if err := s.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	c.FireResult(recognition.Result{Text: "add a task", IsFinal: true})
	g.waitEntered(t, "add a task")
	if !s.IsProcessing() {
		t.Error("IsProcessing() = false while handler runs")
	}

	c.FireResult(recognition.Result{Text: "open calendar", IsFinal: true})
	c.FireResult(recognition.Result{Text: "I'm feeling great", IsFinal: true})
	if got := s.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	g.release <- struct{}{}
	g.waitEntered(t, "open calendar")
	g.release <- struct{}{}
	g.waitEntered(t, "I'm feeling great")

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxSeen != 1 {
		t.Errorf("max concurrent handlers = %d, want 1", g.maxSeen)
	}
}

func TestSession_JoinsFinalsOfOneEvent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		results  []recognition.Result
		wantText string
		wantConf float64
	}{
		{
			name: "two finals",
			results: []recognition.Result{
				{Text: "add a task ", IsFinal: true, Confidence: 0.9},
				{Text: "to call mom", IsFinal: true, Confidence: 0.7},
			},
			wantText: "add a task to call mom",
			wantConf: 0.7,
		},
		{
			name: "interim between finals is ignored",
			results: []recognition.Result{
				{Text: "open ", IsFinal: true, Confidence: 0.8},
				{Text: "my ta"},
				{Text: "my tasks", IsFinal: true, Confidence: 0.85},
			},
			wantText: "open my tasks",
			wantConf: 0.8,
		},
		{
			name: "blank finals are dropped",
			results: []recognition.Result{
				{Text: "  ", IsFinal: true},
				{Text: "", IsFinal: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &mock.Capability{AutoStart: true}
			got := make(chan dictation.Transcript, 4)
			s := dictation.New(c,
				func(_ context.Context, tr dictation.Transcript) { got <- tr },
				dictation.WithScheduler(&mock.Scheduler{}))
			t.Cleanup(func() { _ = s.Close() })
			if err := s.Activate(context.Background()); err != nil {
				t.Fatalf("Activate: %v", err)
			}

			c.FireResult(tt.results...)

			if tt.wantText == "" {
				select {
				case tr := <-got:
					t.Fatalf("handler got %q, want nothing", tr.Text)
				case <-time.After(50 * time.Millisecond):
				}
				return
			}
			select {
			case tr := <-got:
				if tr.Text != tt.wantText || tr.Confidence != tt.wantConf {
					t.Errorf("transcript = %q (%v), want %q (%v)", tr.Text, tr.Confidence, tt.wantText, tt.wantConf)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("transcript never handled")
			}
			select {
			case tr := <-got:
				t.Errorf("extra round %q", tr.Text)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestSession_InterimFeedback(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	var (
		mu      sync.Mutex
		interim []string
	)
	got := make(chan string, 4)
	s := dictation.New(c,
		func(_ context.Context, tr dictation.Transcript) { got <- tr.Text },
		dictation.WithScheduler(&mock.Scheduler{}),
		dictation.OnInterim(func(text string) {
			mu.Lock()
			defer mu.Unlock()
			interim = append(interim, text)
		}),
	)
	t.Cleanup(func() { _ = s.Close() })
	_ = s.Activate(context.Background())

	c.FireResult(recognition.Result{Text: "add"})
	c.FireResult(recognition.Result{Text: "add milk"})
	c.FireResult(recognition.Result{Text: "add milk to my list", IsFinal: true})

	select {
	case text := <-got:
		if text != "add milk to my list" {
			t.Errorf("handler got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("final transcript never handled")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"add", "add milk", ""}
	if len(interim) < len(want) {
		t.Fatalf("interim updates = %q, want prefix %q", interim, want)
	}
	for i := range want {
		if interim[i] != want[i] {
			t.Errorf("interim[%d] = %q, want %q", i, interim[i], want[i])
		}
	}
}

func TestSession_InterimNeverReachesHandler(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	called := make(chan struct{}, 1)
	s := dictation.New(c, func(context.Context, dictation.Transcript) { called <- struct{}{} },
		dictation.WithScheduler(&mock.Scheduler{}))
	t.Cleanup(func() { _ = s.Close() })
	_ = s.Activate(context.Background())

	c.FireResult(recognition.Result{Text: "add a task"})
	select {
	case <-called:
		t.Fatal("interim result reached the handler")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_DeactivateDropsQueueAndStopsRestart(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	sched := &mock.Scheduler{}
	g := newGatedHandler()
	s := dictation.New(c, g.handle, dictation.WithScheduler(sched))
	t.Cleanup(func() {
		close(g.release)
		_ = s.Close()
	})
	_ = s.Activate(context.Background())

	c.FireResult(recognition.Result{Text: "first", IsFinal: true})
	g.waitEntered(t, "first")
	c.FireResult(recognition.Result{Text: "second", IsFinal: true})

	s.Deactivate()
	if s.Active() {
		t.Error("Active() = true after Deactivate")
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after Deactivate, want 0", got)
	}
	c.FireEnd()
	sched.Advance(dictation.DefaultRestartDelay)
	if got := c.Starts(); got != 1 {
		t.Errorf("capability starts = %d, want 1", got)
	}
}

func TestSession_RestartsWhileActive(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	sched := &mock.Scheduler{}
	s := dictation.New(c, func(context.Context, dictation.Transcript) {}, dictation.WithScheduler(sched))
	t.Cleanup(func() { _ = s.Close() })
	_ = s.Activate(context.Background())

	c.FireEnd()
	sched.Advance(dictation.DefaultRestartDelay - time.Millisecond)
	if got := c.Starts(); got != 1 {
		t.Fatalf("restarted early: starts = %d", got)
	}
	sched.Advance(time.Millisecond)
	if got := c.Starts(); got != 2 {
		t.Errorf("starts = %d, want 2", got)
	}
}

func TestSession_HandlerPanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	got := make(chan string, 2)
	s := dictation.New(c, func(_ context.Context, tr dictation.Transcript) {
		if tr.Text == "boom" {
			panic("handler failure")
		}
		got <- tr.Text
	}, dictation.WithScheduler(&mock.Scheduler{}))
	t.Cleanup(func() { _ = s.Close() })
	_ = s.Activate(context.Background())

	c.FireResult(recognition.Result{Text: "boom", IsFinal: true})
	c.FireResult(recognition.Result{Text: "still alive", IsFinal: true})

	select {
	case text := <-got:
		if text != "still alive" {
			t.Errorf("handler got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped after handler panic")
	}
}

func TestSession_ForwardsErrors(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	codes := make(chan string, 2)
	s := dictation.New(c, func(context.Context, dictation.Transcript) {},
		dictation.WithScheduler(&mock.Scheduler{}),
		dictation.OnError(func(code string) { codes <- code }),
	)
	t.Cleanup(func() { _ = s.Close() })
	_ = s.Activate(context.Background())

	c.FireError(recognition.CodeNoSpeech)
	c.FireError(recognition.CodeNetwork)

	select {
	case code := <-codes:
		if code != recognition.CodeNetwork {
			t.Errorf("forwarded %q, want %q", code, recognition.CodeNetwork)
		}
	default:
		t.Fatal("network error not forwarded")
	}
	select {
	case code := <-codes:
		t.Errorf("unexpected extra error %q", code)
	default:
	}
}
