// Package matcher turns a stream of normalized key events into trigger
// signals.
//
// A Matcher tracks one trigger. It emits Fired when the trigger's key
// pattern completes and Released when the key that completed it goes up.
// A Set groups the matchers of a key map set and holds back a short press
// while a long or double press on the same key may still win.
// Timed behavior runs on a sched.Scheduler; listeners are always called
// without the matcher's lock held.
package matcher

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/keyflow/internal/sched"
	"github.com/roach88/keyflow/internal/trigger"
)

// Timing holds the matcher delays.
type Timing struct {
	LongPressDelay time.Duration

	// DoublePressDelay runs from the first release to the second press.
	DoublePressDelay time.Duration

	// SequenceTimeout is the longest gap allowed between two consecutive
	// keys of a sequence, not a bound on the whole sequence.
	SequenceTimeout time.Duration
}

// DefaultTiming returns the stock delays.
func DefaultTiming() Timing {
	return Timing{
		LongPressDelay:   500 * time.Millisecond,
		DoublePressDelay: 300 * time.Millisecond,
		SequenceTimeout:  1000 * time.Millisecond,
	}
}

// For applies a trigger's overrides.
func (t Timing) For(trig trigger.Trigger) Timing {
	if trig.LongPressDelay != nil {
		t.LongPressDelay = *trig.LongPressDelay
	}
	if trig.DoublePressDelay != nil {
		t.DoublePressDelay = *trig.DoublePressDelay
	}
	if trig.SequenceTimeout != nil {
		t.SequenceTimeout = *trig.SequenceTimeout
	}
	return t
}

// Device identifies the source of a key event.
type Device struct {
	Descriptor string
	External   bool
}

// KeyEvent is a normalized key press or release.
type KeyEvent struct {
	KeyCode   int
	ScanCode  int
	Device    Device
	Down      bool
	MetaState int

	// Time is when the event happened. The zero value means now.
	Time time.Time
}

func (e KeyEvent) String() string {
	dir := "up"
	if e.Down {
		dir = "down"
	}
	return fmt.Sprintf("%d %s", e.KeyCode, dir)
}

// SignalKind is what happened to a trigger.
type SignalKind int

const (
	Fired SignalKind = iota
	Released
)

func (k SignalKind) String() string {
	if k == Released {
		return "released"
	}
	return "fired"
}

// Signal is emitted to a Listener.
type Signal struct {
	Kind      SignalKind
	MetaState int

	// FromRelease marks a Fired signal produced by a key release.
	FromRelease bool
}

// Listener receives a matcher's signals in order.
type Listener func(Signal)

type phase int

const (
	phaseIdle phase = iota
	phaseHeld
	phaseFirstDown
	phaseAwaitSecond
)

// Matcher matches one trigger.
type Matcher struct {
	trigger  trigger.Trigger
	timing   Timing
	sched    sched.Scheduler
	listener Listener

	mu      sync.Mutex
	pressed []bool
	step    int
	stepAt  time.Time
	phase   phase
	firstUp time.Time
	meta    int
	timer   sched.Timer
	gen     uint64

	fired      bool
	releaseKey int
}

// New creates a matcher for trig. Invalid triggers are rejected.
func New(trig trigger.Trigger, timing Timing, s sched.Scheduler, listener Listener) (*Matcher, error) {
	if err := trig.Validate(); err != nil {
		return nil, fmt.Errorf("trigger %s: %w", trig, err)
	}
	if listener == nil {
		listener = func(Signal) {}
	}
	return &Matcher{
		trigger:  trig,
		timing:   timing.For(trig),
		sched:    s,
		listener: listener,
		pressed:  make([]bool, len(trig.Keys)),
	}, nil
}

// Timing returns the delays in effect, overrides applied.
func (m *Matcher) Timing() Timing {
	return m.timing
}

// Handle feeds one event to the matcher and reports whether the trigger
// wants the event consumed.
func (m *Matcher) Handle(ev KeyEvent) bool {
	idx := m.matching(ev)
	if len(idx) == 0 {
		return false
	}
	if ev.Time.IsZero() {
		ev.Time = m.sched.Now()
	}

	m.mu.Lock()
	out := m.handleLocked(ev, idx)
	m.mu.Unlock()

	m.emit(out)
	return m.trigger.ConsumesKey(ev.KeyCode, ev.Device.External, ev.Device.Descriptor)
}

// Reset drops all progress and cancels pending timers without emitting.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimer()
	clear(m.pressed)
	m.step = 0
	m.phase = phaseIdle
	m.fired = false
}

// hasClickKey reports whether any key of the trigger is a c press that
// matches ev's key and device.
func (m *Matcher) hasClickKey(c trigger.ClickType, ev KeyEvent) bool {
	for _, k := range m.trigger.Keys {
		if k.ClickType == c && k.MatchesCode(ev.KeyCode, ev.Device.External, ev.Device.Descriptor) {
			return true
		}
	}
	return false
}

// awaitingLongPress reports whether a long press that includes ev's key is
// being held and has not fired yet.
func (m *Matcher) awaitingLongPress(ev KeyEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != phaseHeld {
		return false
	}
	if m.trigger.Mode.Kind == trigger.Parallel {
		return len(m.matching(ev)) > 0
	}
	return m.trigger.Keys[m.step].MatchesCode(ev.KeyCode, ev.Device.External, ev.Device.Descriptor)
}

// shortPress reports whether the trigger fires on the press of a single
// short key or short chord. Only these can lose to a longer press.
func (m *Matcher) shortPress() bool {
	switch m.trigger.Mode.Kind {
	case trigger.Parallel:
		return m.trigger.Mode.ClickType == trigger.ShortPress
	case trigger.Sequence:
		return false
	}
	return m.trigger.Keys[0].ClickType == trigger.ShortPress
}

func (m *Matcher) matching(ev KeyEvent) []int {
	var idx []int
	for i, k := range m.trigger.Keys {
		if k.MatchesCode(ev.KeyCode, ev.Device.External, ev.Device.Descriptor) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (m *Matcher) handleLocked(ev KeyEvent, idx []int) []Signal {
	if ev.Down {
		// Repeated downs from a held key carry no new information.
		if allPressed(m.pressed, idx) {
			return nil
		}
		for _, i := range idx {
			m.pressed[i] = true
		}
		if m.trigger.Mode.Kind == trigger.Parallel {
			return m.parallelDown(ev)
		}
		return m.sequenceDown(ev, idx)
	}

	if !anyPressed(m.pressed, idx) {
		return nil
	}
	for _, i := range idx {
		m.pressed[i] = false
	}
	if m.trigger.Mode.Kind == trigger.Parallel {
		return m.parallelUp(ev)
	}
	return m.sequenceUp(ev, idx)
}

// A single-key trigger is matched as a sequence of one step.
func (m *Matcher) sequenceDown(ev KeyEvent, idx []int) []Signal {
	if m.step > 0 && ev.Time.Sub(m.stepAt) > m.timing.SequenceTimeout {
		m.abort()
	}
	if !slices.Contains(idx, m.step) {
		if m.step > 0 || m.phase != phaseIdle {
			m.abort()
		}
		if !slices.Contains(idx, 0) {
			return nil
		}
	}

	switch m.trigger.Keys[m.step].ClickType {
	case trigger.LongPress:
		m.phase = phaseHeld
		m.meta = ev.MetaState
		m.startTimer(m.timing.LongPressDelay, m.longPressElapsed)
		return nil
	case trigger.DoublePress:
		if m.phase == phaseAwaitSecond && ev.Time.Sub(m.firstUp) <= m.timing.DoublePressDelay {
			return m.completeStep(ev.Time, ev.MetaState)
		}
		m.phase = phaseFirstDown
		return nil
	default:
		return m.completeStep(ev.Time, ev.MetaState)
	}
}

func (m *Matcher) sequenceUp(ev KeyEvent, idx []int) []Signal {
	var out []Signal
	if m.fired && slices.Contains(idx, m.releaseKey) {
		m.fired = false
		out = append(out, Signal{Kind: Released, MetaState: ev.MetaState})
	}
	if !slices.Contains(idx, m.step) {
		return out
	}
	switch m.phase {
	case phaseHeld:
		// Released before the long-press delay.
		m.abort()
	case phaseFirstDown:
		m.phase = phaseAwaitSecond
		m.firstUp = ev.Time
	}
	return out
}

func (m *Matcher) completeStep(at time.Time, meta int) []Signal {
	m.stopTimer()
	m.phase = phaseIdle
	if m.step < len(m.trigger.Keys)-1 {
		m.step++
		m.stepAt = at
		return nil
	}
	m.step = 0
	m.fired = true
	m.releaseKey = len(m.trigger.Keys) - 1
	return []Signal{{Kind: Fired, MetaState: meta}}
}

func (m *Matcher) longPressElapsed(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.phase != phaseHeld {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	var out []Signal
	if m.trigger.Mode.Kind == trigger.Parallel {
		m.phase = phaseIdle
		m.fired = true
		out = []Signal{{Kind: Fired, MetaState: m.meta}}
	} else {
		out = m.completeStep(m.sched.Now(), m.meta)
	}
	m.mu.Unlock()

	m.emit(out)
}

func (m *Matcher) parallelDown(ev KeyEvent) []Signal {
	if !allPressed(m.pressed, nil) || m.fired || m.phase == phaseHeld {
		return nil
	}
	if m.trigger.Mode.ClickType == trigger.LongPress {
		m.phase = phaseHeld
		m.meta = ev.MetaState
		m.startTimer(m.timing.LongPressDelay, m.longPressElapsed)
		return nil
	}
	m.fired = true
	return []Signal{{Kind: Fired, MetaState: ev.MetaState}}
}

func (m *Matcher) parallelUp(ev KeyEvent) []Signal {
	if m.phase == phaseHeld {
		m.stopTimer()
		m.phase = phaseIdle
	}
	if !m.fired {
		return nil
	}
	m.fired = false
	return []Signal{{Kind: Released, MetaState: ev.MetaState}}
}

func (m *Matcher) abort() {
	m.stopTimer()
	m.step = 0
	m.phase = phaseIdle
}

// startTimer must be called with mu held.
func (m *Matcher) startTimer(d time.Duration, f func(gen uint64)) {
	m.stopTimer()
	gen := m.gen
	m.timer = m.sched.AfterFunc(d, func() { f(gen) })
}

// stopTimer must be called with mu held. Bumping the generation discards
// a callback that is already running on another goroutine.
func (m *Matcher) stopTimer() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Matcher) emit(out []Signal) {
	for _, sig := range out {
		m.listener(sig)
	}
}

// allPressed reports whether every key in idx is pressed. A nil idx means
// every key of the trigger.
func allPressed(pressed []bool, idx []int) bool {
	if idx == nil {
		return !slices.Contains(pressed, false)
	}
	for _, i := range idx {
		if !pressed[i] {
			return false
		}
	}
	return true
}

func anyPressed(pressed []bool, idx []int) bool {
	for _, i := range idx {
		if pressed[i] {
			return true
		}
	}
	return false
}
