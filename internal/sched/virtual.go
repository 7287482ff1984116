package sched

import (
	"sync"
	"time"
)

// Virtual is a manually advanced scheduler.
//
// Time only moves when Advance is called. Continuations that fall due run
// synchronously on the caller's goroutine, ordered by due time and then by
// registration order, with Now reporting their due time while they run.
// Continuations may schedule further continuations; those run within the
// same Advance if they fall due before its target.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*virtualTimer
}

type virtualTimer struct {
	v       *Virtual
	due     time.Time
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

// NewVirtual creates a virtual scheduler whose clock starts at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc registers f to run once the virtual clock reaches Now()+d.
// Negative delays are treated as zero.
func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{v: v, due: v.now.Add(d), seq: v.seq, f: f}
	v.pending = append(v.pending, t)
	return t
}

// Stop implements Timer.
func (t *virtualTimer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.v.remove(t)
	return true
}

// Advance moves the clock forward by d, running every continuation that
// falls due on the way.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		t := v.popDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	v.mu.Lock()
	if target.After(v.now) {
		v.now = target
	}
	v.mu.Unlock()
}

// Pending returns the number of continuations waiting to run.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// NextDue returns the due time of the earliest pending continuation.
func (v *Virtual) NextDue() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.earliest()
	if t == nil {
		return time.Time{}, false
	}
	return t.due, true
}

func (v *Virtual) popDue(target time.Time) *virtualTimer {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.earliest()
	if t == nil || t.due.After(target) {
		return nil
	}
	v.remove(t)
	t.fired = true
	if t.due.After(v.now) {
		v.now = t.due
	}
	return t
}

// earliest must be called with mu held.
func (v *Virtual) earliest() *virtualTimer {
	var best *virtualTimer
	for _, t := range v.pending {
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// remove must be called with mu held.
func (v *Virtual) remove(t *virtualTimer) {
	for i, p := range v.pending {
		if p == t {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return
		}
	}
}
