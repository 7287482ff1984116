// Package sched provides the cancellable waits that matcher and dispatcher
// tasks suspend on.
//
// A task never sleeps. It registers a continuation with AfterFunc and returns;
// the continuation runs when the wait elapses unless the returned Timer was
// stopped first. Stopping is the only cancellation checkpoint a task has, so
// every continuation must re-check its own liveness before acting.
//
// Two schedulers are provided:
//   - Clock: backed by a clockwork.Clock. Continuations run on their own
//     goroutines, so callers guard state with a mutex.
//   - Virtual: a manual scheduler for tests and scenario replay.
//     Continuations run synchronously inside Advance in due-time order.
package sched

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending continuation.
type Timer interface {
	// Stop cancels the continuation. It reports whether the call stopped
	// the timer; false means it already ran or was already stopped.
	Stop() bool
}

// Scheduler runs continuations after a delay.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Clock adapts a clockwork.Clock to Scheduler.
type Clock struct {
	clock clockwork.Clock
}

// NewClock wraps the given clock. A nil clock means the real wall clock.
func NewClock(c clockwork.Clock) *Clock {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Clock{clock: c}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	return c.clock.Now()
}

// AfterFunc schedules f on its own goroutine after d.
func (c *Clock) AfterFunc(d time.Duration, f func()) Timer {
	return c.clock.AfterFunc(d, f)
}
