// Package dispatch performs a key map's action list when its trigger fires.
//
// A Dispatcher owns the runtime state of one binding: which hold-down
// actions are currently held, the repeat task of each repeating action and
// the in-flight walk over the action list. All of it is guarded by one
// mutex, so sink calls are serialized and happen in list order.
//
// Tasks suspend only on sched.Scheduler waits. A continuation re-checks
// that its task was not cancelled before it performs anything.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/sched"
)

// Sink executes one phase of an action.
type Sink interface {
	Perform(ctx context.Context, data action.Data, ev action.InputEventType, metaState int) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, data action.Data, ev action.InputEventType, metaState int) error

// Perform implements Sink.
func (f SinkFunc) Perform(ctx context.Context, data action.Data, ev action.InputEventType, metaState int) error {
	return f(ctx, data, ev, metaState)
}

// Timing holds the dispatcher delays used when an action leaves them unset.
type Timing struct {
	RepeatDelay      time.Duration
	RepeatRate       time.Duration
	HoldDownDuration time.Duration
}

// DefaultTiming returns the stock delays.
func DefaultTiming() Timing {
	return Timing{
		RepeatDelay:      400 * time.Millisecond,
		RepeatRate:       50 * time.Millisecond,
		HoldDownDuration: 1000 * time.Millisecond,
	}
}

// Validate rejects delays the repeat loop cannot run with.
func (t Timing) Validate() error {
	if t.RepeatRate <= 0 {
		return fmt.Errorf("repeat rate must be positive, got %s", t.RepeatRate)
	}
	if t.RepeatDelay < 0 || t.HoldDownDuration < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}

// ActionError is a sink failure for one action.
type ActionError struct {
	Index int
	Data  action.Data
	Event action.InputEventType
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) %s: %v", e.Index, e.Data.Kind, e.Event, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithContext sets the context passed to the sink.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) {
		d.ctx = ctx
	}
}

// WithErrorHandler sets a callback for sink failures. It receives failures
// from scheduled continuations as well as from the synchronous calls.
func WithErrorHandler(f func(error)) Option {
	return func(d *Dispatcher) {
		d.onError = f
	}
}

// Dispatcher performs one action list.
type Dispatcher struct {
	actions []action.Action
	timing  Timing
	sched   sched.Scheduler
	sink    Sink
	ctx     context.Context
	onError func(error)

	mu       sync.Mutex
	held     []bool
	repeats  []*repeatTask
	walk     *task
	failures []error
}

type task struct {
	timer     sched.Timer
	cancelled bool
}

// stop must be called with the dispatcher lock held. It is idempotent.
func (t *task) stop() {
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

type repeatTask struct {
	task
	index int
	meta  int
	count int

	// held is set between the DOWN and UP of a hold-down repeat.
	held bool
}

// New creates a dispatcher for actions. The slice is copied.
func New(actions []action.Action, timing Timing, s sched.Scheduler, sink Sink, opts ...Option) (*Dispatcher, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
	}

	d := &Dispatcher{
		actions: slices.Clone(actions),
		timing:  timing,
		sched:   s,
		sink:    sink,
		ctx:     context.Background(),
		held:    make([]bool, len(actions)),
		repeats: make([]*repeatTask, len(actions)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// OnTriggered starts a walk over the action list and (re)starts repeat
// tasks. The walk runs synchronously up to its first non-zero wait.
//
// fromRelease marks a trigger that fired on release; TriggerReleased
// repeats are not started for it.
func (d *Dispatcher) OnTriggered(fromRelease bool, metaState int) error {
	d.mu.Lock()

	if d.walk != nil {
		d.walk.stop()
	}
	w := &task{}
	d.walk = w
	d.walkFrom(w, 0, metaState)

	wasRepeating := make([]bool, len(d.actions))
	for i, r := range d.repeats {
		if r != nil {
			wasRepeating[i] = true
			d.cancelRepeat(i, false)
		}
	}

	for i, a := range d.actions {
		if !a.Repeat {
			continue
		}
		if fromRelease && a.RepeatMode == action.TriggerReleased {
			continue
		}
		// Pressing the trigger again stops the repeat instead.
		if a.RepeatMode == action.TriggerPressedAgain && wasRepeating[i] {
			continue
		}
		if a.Data.IsModifierInput() {
			continue
		}
		d.startRepeat(i, metaState)
	}

	err := d.drain()
	d.mu.Unlock()
	d.report(err)
	return err
}

// OnReleased stops TriggerReleased repeats and releases held actions that
// are not waiting for the trigger to be pressed again.
func (d *Dispatcher) OnReleased(metaState int) error {
	d.mu.Lock()

	for i, a := range d.actions {
		if a.RepeatMode == action.TriggerReleased {
			d.cancelRepeat(i, false)
		}
	}
	for i, a := range d.actions {
		if a.HoldDown && !a.StopHoldDownWhenTriggerPressedAgain && d.held[i] {
			d.held[i] = false
			d.perform(i, action.Up, metaState)
		}
	}

	err := d.drain()
	d.mu.Unlock()
	d.report(err)
	return err
}

// Reset cancels the walk and every repeat, releases every held action and
// clears all state.
func (d *Dispatcher) Reset() error {
	d.mu.Lock()

	if d.walk != nil {
		d.walk.stop()
		d.walk = nil
	}
	for i := range d.repeats {
		d.cancelRepeat(i, true)
	}
	for i, held := range d.held {
		if held {
			d.held[i] = false
			d.perform(i, action.Up, 0)
		}
	}

	err := d.drain()
	d.mu.Unlock()
	d.report(err)
	return err
}

// Held reports which actions are currently held down.
func (d *Dispatcher) Held() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.held)
}

// Repeating reports which actions have a live repeat task.
func (d *Dispatcher) Repeating() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]bool, len(d.repeats))
	for i, r := range d.repeats {
		out[i] = r != nil
	}
	return out
}

// Walking reports whether a walk is still in flight.
func (d *Dispatcher) Walking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.walk != nil
}

// Idle reports whether nothing is held, repeating or walking.
func (d *Dispatcher) Idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.walk != nil {
		return false
	}
	for i := range d.actions {
		if d.held[i] || d.repeats[i] != nil {
			return false
		}
	}
	return true
}

// walkFrom performs actions[i:] until the walk has to wait.
func (d *Dispatcher) walkFrom(w *task, i, meta int) {
	if i >= len(d.actions) {
		if d.walk == w {
			d.walk = nil
		}
		return
	}

	a := d.actions[i]
	d.perform(i, d.walkEvent(i), meta)

	wait := durationOr(a.DelayBeforeNextAction, 0)
	if a.Repeat && a.HoldDown {
		wait += durationOr(a.HoldDownDuration, d.timing.HoldDownDuration)
	}
	d.after(w, wait, func() { d.walkFrom(w, i+1, meta) })
}

// walkEvent decides the phase of action i for this walk and updates its
// held state.
func (d *Dispatcher) walkEvent(i int) action.InputEventType {
	a := d.actions[i]
	up := false
	if a.HoldDown && a.Repeat && a.RepeatMode == action.TriggerPressedAgain && d.held[i] {
		d.held[i] = false
		up = true
	}
	if a.StopHoldDownWhenTriggerPressedAgain && d.held[i] {
		d.held[i] = false
		up = true
	}

	switch {
	case up:
		return action.Up
	case a.HoldDown:
		d.held[i] = true
		return action.Down
	default:
		return action.DownUp
	}
}

func (d *Dispatcher) startRepeat(i, meta int) {
	r := &repeatTask{index: i, meta: meta}
	d.repeats[i] = r
	d.after(&r.task, durationOr(d.actions[i].RepeatDelay, d.timing.RepeatDelay), func() {
		d.repeatOnce(r)
	})
}

func (d *Dispatcher) repeatOnce(r *repeatTask) {
	a := d.actions[r.index]
	if !a.HoldDown {
		d.perform(r.index, action.DownUp, r.meta)
		d.repeatNext(r)
		return
	}

	d.perform(r.index, action.Down, r.meta)
	r.held = true
	d.after(&r.task, durationOr(a.HoldDownDuration, d.timing.HoldDownDuration), func() {
		r.held = false
		d.perform(r.index, action.Up, r.meta)
		d.repeatNext(r)
	})
}

func (d *Dispatcher) repeatNext(r *repeatTask) {
	a := d.actions[r.index]
	r.count++
	if a.RepeatLimit != nil && r.count >= *a.RepeatLimit {
		if d.repeats[r.index] == r {
			d.repeats[r.index] = nil
		}
		return
	}
	d.after(&r.task, durationOr(a.RepeatRate, d.timing.RepeatRate), func() {
		d.repeatOnce(r)
	})
}

// cancelRepeat stops the repeat task of action i. A task cancelled between
// its DOWN and UP gets its UP now, with no meta state on reset.
func (d *Dispatcher) cancelRepeat(i int, reset bool) {
	r := d.repeats[i]
	if r == nil {
		return
	}
	d.repeats[i] = nil
	r.stop()
	if r.held {
		r.held = false
		meta := r.meta
		if reset {
			meta = 0
		}
		d.perform(i, action.Up, meta)
	}
}

// after runs f on behalf of t once wait has elapsed. Zero waits run f
// immediately. Must be called with mu held; f runs with mu held.
func (d *Dispatcher) after(t *task, wait time.Duration, f func()) {
	if wait <= 0 {
		f()
		return
	}
	t.timer = d.sched.AfterFunc(wait, func() {
		d.mu.Lock()
		if t.cancelled {
			d.mu.Unlock()
			return
		}
		t.timer = nil
		f()
		err := d.drain()
		d.mu.Unlock()
		d.report(err)
	})
}

// perform sends one phase of action i to the sink, Times() times.
// Failures are collected and never stop the caller.
func (d *Dispatcher) perform(i int, ev action.InputEventType, meta int) {
	a := d.actions[i]
	for range a.Times() {
		if err := d.sink.Perform(d.ctx, a.Data, ev, meta); err != nil {
			slog.Warn("action failed",
				"action", i,
				"kind", a.Data.Kind,
				"event", ev.String(),
				"error", err)
			d.failures = append(d.failures, &ActionError{Index: i, Data: a.Data, Event: ev, Err: err})
		}
	}
}

func (d *Dispatcher) drain() error {
	err := errors.Join(d.failures...)
	d.failures = nil
	return err
}

func (d *Dispatcher) report(err error) {
	if err != nil && d.onError != nil {
		d.onError(err)
	}
}

func durationOr(d *time.Duration, def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return *d
}
