package wakeword

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/internal/recognition/mock"
)

func TestResume_StopDuringRestartLeavesSessionIdle(t *testing.T) {
	t.Parallel()
	c := &mock.Capability{AutoStart: true}
	sched := &mock.Scheduler{}
	l := New(c, nil, WithScheduler(sched), WithCooldown(time.Second))
	t.Cleanup(func() { _ = l.Close() })
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.FireResult(recognition.Result{Text: "hey louis"})
	l.mu.Lock()
	l.beforeResume = l.Stop
	l.mu.Unlock()
	sched.Advance(time.Second)

	if got := c.Starts(); got != 2 {
		t.Fatalf("starts = %d, want 2", got)
	}
	if got := l.Status(); got != recognition.StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if got := c.Stops(); got != 2 {
		t.Errorf("capability stops = %d, want 2", got)
	}
	if l.Listening() {
		t.Error("Listening() = true after Stop")
	}
}
