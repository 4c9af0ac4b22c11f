package recognition

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop cancels the call. Returns false if it already fired or was
	// stopped.
	Stop() bool
}

// Scheduler schedules delayed calls. Sessions use it for restart delays and
// wake-word cooldowns so tests can drive time by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules on the wall clock via [time.AfterFunc].
type SystemScheduler struct{}

// AfterFunc implements [Scheduler].
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
