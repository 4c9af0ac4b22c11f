// Package mock provides test doubles for the recognition package: a
// [Capability] whose events the test fires by hand, and a [Scheduler] whose
// clock the test advances explicitly.
//
//	c := &mock.Capability{}
//	s := recognition.NewSession(c, recognition.WithScheduler(sched))
//	_ = s.Start(ctx)
//	c.FireStart()
//	c.FireResult(recognition.Result{Text: "hey louis"})
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/vesper/internal/recognition"
)

// ─── Capability ───────────────────────────────────────────────────────────────

// StartCall records one Capability.Start invocation.
type StartCall struct {
	Config recognition.Config
	Events recognition.Events
}

// Capability is a mock implementation of [recognition.Capability]. Events are
// delivered to the handlers of the most recent Start call.
type Capability struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// AutoStart fires OnStart synchronously inside Start.
	AutoStart bool

	// StartCalls records every Start call, including failed ones.
	StartCalls []StartCall

	// StopCount is the number of Stop calls.
	StopCount int
}

// Start records the call and returns StartErr.
func (c *Capability) Start(_ context.Context, cfg recognition.Config, ev recognition.Events) error {
	c.mu.Lock()
	c.StartCalls = append(c.StartCalls, StartCall{Config: cfg, Events: ev})
	err := c.StartErr
	auto := c.AutoStart
	c.mu.Unlock()
	if err == nil && auto && ev.OnStart != nil {
		ev.OnStart()
	}
	return err
}

// Stop records the call.
func (c *Capability) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCount++
}

// SetStartErr changes the error returned by later Start calls.
func (c *Capability) SetStartErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartErr = err
}

// Starts returns the number of Start calls.
func (c *Capability) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.StartCalls)
}

// Stops returns the number of Stop calls.
func (c *Capability) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.StopCount
}

// LastConfig returns the config of the latest Start call.
func (c *Capability) LastConfig() recognition.Config {
	return c.last().Config
}

func (c *Capability) last() StartCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.StartCalls) == 0 {
		return StartCall{}
	}
	return c.StartCalls[len(c.StartCalls)-1]
}

// FireStart delivers OnStart to the latest run.
func (c *Capability) FireStart() {
	if fn := c.last().Events.OnStart; fn != nil {
		fn()
	}
}

// FireEnd delivers OnEnd to the latest run.
func (c *Capability) FireEnd() {
	if fn := c.last().Events.OnEnd; fn != nil {
		fn()
	}
}

// FireError delivers OnError to the latest run.
func (c *Capability) FireError(code string) {
	if fn := c.last().Events.OnError; fn != nil {
		fn(code)
	}
}

// FireResult delivers OnResult to the latest run.
func (c *Capability) FireResult(results ...recognition.Result) {
	if fn := c.last().Events.OnResult; fn != nil {
		fn(results)
	}
}

// Events returns the handlers passed to the n-th Start call (0-based).
func (c *Capability) Events(n int) recognition.Events {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.StartCalls[n].Events
}

var _ recognition.Capability = (*Capability)(nil)

// ─── Scheduler ────────────────────────────────────────────────────────────────

// Scheduler is a manual [recognition.Scheduler]. Scheduled calls only run
// when the test calls Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*Timer
}

// Timer is a pending call on a [Scheduler].
type Timer struct {
	s       *Scheduler
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// AfterFunc implements [recognition.Scheduler].
func (s *Scheduler) AfterFunc(d time.Duration, f func()) recognition.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Timer{s: s, at: s.now + d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop implements [recognition.Timer].
func (t *Timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d and runs every call that came due, in
// deadline order. Calls run without the scheduler lock held and may schedule
// further calls.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	now := s.now
	var due []*Timer
	keep := s.timers[:0]
	for _, t := range s.timers {
		switch {
		case t.stopped:
		case t.at <= now:
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	s.timers = keep
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of scheduled calls that have neither fired nor
// been stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var _ recognition.Scheduler = (*Scheduler)(nil)
