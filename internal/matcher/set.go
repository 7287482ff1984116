package matcher

import (
	"slices"
	"sync"
	"time"

	"github.com/roach88/keyflow/internal/sched"
	"github.com/roach88/keyflow/internal/trigger"
)

// Set routes every event to a group of matchers and arbitrates between
// triggers that share a key.
//
// A short press is deferred when another trigger could still turn the same
// press into a double press, or is holding it for a long press. If the
// longer trigger fires, the short press is dropped together with its
// release. Otherwise it fires with FromRelease set: on release when it
// waited for a long press, or once the double-press window has passed
// since the release.
//
// Handle and the scheduler's callbacks must be serialized by the caller.
// Listeners are called without the set's lock held.
type Set struct {
	sched sched.Scheduler

	mu        sync.Mutex
	matchers  []*Matcher
	listeners map[*Matcher]Listener
	pending   []*deferred
	muted     map[*Matcher]bool

	// batching collects the signals of one Handle call for settle.
	batching bool
	batch    []emitted
}

type waitFor int

const (
	waitLong waitFor = iota
	waitDouble
)

func (w waitFor) clickType() trigger.ClickType {
	if w == waitDouble {
		return trigger.DoublePress
	}
	return trigger.LongPress
}

// deferred is a short press held back by a longer trigger on its key.
type deferred struct {
	m      *Matcher
	sig    Signal
	ev     KeyEvent
	waitOn waitFor
	window time.Duration

	released *Signal
	timer    sched.Timer
}

func (d *deferred) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *deferred) sameKey(ev KeyEvent) bool {
	return d.ev.KeyCode == ev.KeyCode && d.ev.Device == ev.Device
}

type emitted struct {
	m   *Matcher
	sig Signal
}

type delivery struct {
	listener Listener
	sig      Signal
}

// NewSet creates a set of matchers. Deferral windows run on s.
func NewSet(s sched.Scheduler, ms ...*Matcher) *Set {
	set := &Set{
		sched:     s,
		listeners: make(map[*Matcher]Listener),
		muted:     make(map[*Matcher]bool),
	}
	for _, m := range ms {
		set.Add(m)
	}
	return set
}

// Add appends a matcher. Its signals go through the set from now on.
func (s *Set) Add(m *Matcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopt(m)
	s.matchers = append(s.matchers, m)
}

// Replace swaps the matchers for ms, in match order. Matchers kept from
// the previous list keep their deferred presses; the others are dropped
// and get their own listener back.
func (s *Set) Replace(ms []*Matcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, old := range s.matchers {
		if slices.Contains(ms, old) {
			continue
		}
		old.listener = s.listeners[old]
		delete(s.listeners, old)
		delete(s.muted, old)
		s.pending = slices.DeleteFunc(s.pending, func(d *deferred) bool {
			if d.m == old {
				d.stop()
				return true
			}
			return false
		})
	}
	for _, m := range ms {
		s.adopt(m)
	}
	s.matchers = slices.Clone(ms)
}

// adopt must be called with mu held.
func (s *Set) adopt(m *Matcher) {
	if _, ok := s.listeners[m]; ok {
		return
	}
	s.listeners[m] = m.listener
	m.listener = func(sig Signal) { s.route(m, sig) }
}

// Len returns the number of matchers.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matchers)
}

// Pending returns the number of deferred short presses.
func (s *Set) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Handle feeds ev to every matcher in order, settles the signals they
// emitted and reports whether any matched trigger key consumes the event.
// A zero event time means now.
func (s *Set) Handle(ev KeyEvent) bool {
	if ev.Time.IsZero() {
		ev.Time = s.sched.Now()
	}

	s.mu.Lock()
	ms := s.matchers
	s.batching = true
	s.batch = nil
	s.mu.Unlock()

	consumed := false
	for _, m := range ms {
		if m.Handle(ev) {
			consumed = true
		}
	}

	s.mu.Lock()
	batch := s.batch
	s.batch = nil
	s.batching = false
	out := s.settleLocked(ev, batch)
	s.mu.Unlock()

	deliver(out)
	return consumed
}

// Reset drops deferred presses without emitting and resets every matcher.
func (s *Set) Reset() {
	s.mu.Lock()
	for _, d := range s.pending {
		d.stop()
	}
	s.pending = nil
	clear(s.muted)
	ms := s.matchers
	s.mu.Unlock()

	for _, m := range ms {
		m.Reset()
	}
}

// route receives every signal of an adopted matcher. Outside Handle the
// signal comes from a timer, a long press firing.
func (s *Set) route(m *Matcher, sig Signal) {
	s.mu.Lock()
	if s.batching {
		s.batch = append(s.batch, emitted{m: m, sig: sig})
		s.mu.Unlock()
		return
	}
	if sig.Kind == Fired {
		s.cancelBeatenLocked(m)
	}
	out := s.passLocked(m, sig)
	s.mu.Unlock()

	deliver(out)
}

// settleLocked must be called with mu held.
func (s *Set) settleLocked(ev KeyEvent, batch []emitted) []delivery {
	var fresh []*deferred
	var rest []emitted
	for _, e := range batch {
		if ev.Down && e.sig.Kind == Fired && e.m.shortPress() {
			if d := s.blockerLocked(e.m, ev); d != nil {
				d.sig = e.sig
				fresh = append(fresh, d)
				continue
			}
		}
		rest = append(rest, e)
	}
	s.pending = append(s.pending, fresh...)

	for _, e := range rest {
		if e.sig.Kind == Fired {
			s.cancelBeatenLocked(e.m)
		}
	}

	var out []delivery
	if ev.Down {
		// A new press of the key ends the double-press window of an
		// earlier tap that nothing completed.
		for _, d := range slices.Clone(s.pending) {
			if d.waitOn == waitDouble && d.released != nil && d.sameKey(ev) && !slices.Contains(fresh, d) {
				s.dropLocked(d)
				out = append(out, s.releaseLocked(d)...)
			}
		}
	}
	for _, e := range rest {
		out = append(out, s.passLocked(e.m, e.sig)...)
	}
	return out
}

// blockerLocked returns a deferral for m's press of ev if another trigger
// can still claim it. Double press takes precedence over long press.
func (s *Set) blockerLocked(m *Matcher, ev KeyEvent) *deferred {
	var window time.Duration
	for _, o := range s.matchers {
		if o != m && o.hasClickKey(trigger.DoublePress, ev) {
			window = max(window, o.Timing().DoublePressDelay)
		}
	}
	if window > 0 {
		return &deferred{m: m, ev: ev, waitOn: waitDouble, window: window}
	}
	for _, o := range s.matchers {
		if o != m && o.awaitingLongPress(ev) {
			return &deferred{m: m, ev: ev, waitOn: waitLong}
		}
	}
	return nil
}

// cancelBeatenLocked drops the presses that winner's firing claims. A
// dropped press that has not been released yet also loses its release.
func (s *Set) cancelBeatenLocked(winner *Matcher) {
	s.pending = slices.DeleteFunc(s.pending, func(d *deferred) bool {
		if d.m == winner || !winner.hasClickKey(d.waitOn.clickType(), d.ev) {
			return false
		}
		d.stop()
		if d.released == nil {
			s.muted[d.m] = true
		}
		return true
	})
}

// passLocked forwards one signal, holding back the release of a deferred
// press.
func (s *Set) passLocked(m *Matcher, sig Signal) []delivery {
	if sig.Kind == Released {
		if d := s.deferredFor(m); d != nil {
			d.released = &sig
			if d.waitOn == waitLong {
				s.dropLocked(d)
				return s.releaseLocked(d)
			}
			d.timer = s.sched.AfterFunc(d.window, func() { s.windowElapsed(d) })
			return nil
		}
		if s.muted[m] {
			delete(s.muted, m)
			return nil
		}
	}
	return []delivery{{listener: s.listeners[m], sig: sig}}
}

func (s *Set) windowElapsed(d *deferred) {
	s.mu.Lock()
	if !s.dropLocked(d) {
		s.mu.Unlock()
		return
	}
	out := s.releaseLocked(d)
	s.mu.Unlock()

	deliver(out)
}

// deferredFor returns m's deferred press that is still held down.
func (s *Set) deferredFor(m *Matcher) *deferred {
	for _, d := range s.pending {
		if d.m == m && d.released == nil {
			return d
		}
	}
	return nil
}

// dropLocked removes d and reports whether it was still pending.
func (s *Set) dropLocked(d *deferred) bool {
	i := slices.Index(s.pending, d)
	if i < 0 {
		return false
	}
	d.stop()
	s.pending = slices.Delete(s.pending, i, i+1)
	return true
}

// releaseLocked builds the late firing of d followed by its release.
func (s *Set) releaseLocked(d *deferred) []delivery {
	l := s.listeners[d.m]
	fired := d.sig
	fired.FromRelease = true
	out := []delivery{{listener: l, sig: fired}}
	if d.released != nil {
		out = append(out, delivery{listener: l, sig: *d.released})
	}
	return out
}

func deliver(out []delivery) {
	for _, d := range out {
		d.listener(d.sig)
	}
}
