package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/config"
	"github.com/roach88/keyflow/internal/constraint"
	"github.com/roach88/keyflow/internal/dispatch"
	"github.com/roach88/keyflow/internal/keymap"
	"github.com/roach88/keyflow/internal/matcher"
	"github.com/roach88/keyflow/internal/sched"
	"github.com/roach88/keyflow/internal/store"
)

// Firing describes one trigger signal handled by the engine.
type Firing struct {
	ID        string
	KeyMapUID string
	Signal    matcher.Signal

	// Satisfied is the gate outcome. Released signals are always satisfied.
	Satisfied bool
	At        time.Time
}

// Engine runs a set of key maps.
//
// Thread-safety model:
//   - Handle, Load, Reset: safe from any goroutine, serialized by the engine lock
//   - Enqueue: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Hooks (error handler, firing hook) and the sink are called with the
// engine lock held and must not call back into the engine.
type Engine struct {
	sched    sched.Scheduler
	timers   sched.Scheduler
	sink     dispatch.Sink
	provider constraint.Provider
	store    *store.Store
	clock    *Clock
	ids      IDGenerator
	queue    *eventQueue
	ctx      context.Context
	onError  func(error)
	onFiring func(Firing)

	mu       sync.Mutex
	set      *keymap.Set
	defaults config.Defaults
	loaded   bool
	bindings []*binding
	matchers *matcher.Set
}

// binding is one enabled key map wired to its matcher and dispatcher.
type binding struct {
	keyMap     keymap.KeyMap
	gate       []constraint.State
	matcher    *matcher.Matcher
	dispatcher *dispatch.Dispatcher

	// firingID is the last signal of this binding; performs are linked to it.
	firingID string
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore journals firings and performs into s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock sets the logical clock that stamps journal records.
// Use NewClockAt(store.LastSeq) to append to an existing journal.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the firing ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithContext sets the context passed to the sink.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// WithErrorHandler receives every ACTION_FAILED error.
func WithErrorHandler(f func(error)) Option {
	return func(e *Engine) {
		e.onError = f
	}
}

// WithFiringHook receives every trigger signal after its gate is evaluated.
func WithFiringHook(f func(Firing)) Option {
	return func(e *Engine) {
		e.onFiring = f
	}
}

// New creates an engine with no key maps loaded. A nil provider means a
// snapshot with every fact at its zero value.
func New(s sched.Scheduler, sink dispatch.Sink, provider constraint.Provider, opts ...Option) *Engine {
	if provider == nil {
		provider = constraint.Static{}
	}
	e := &Engine{
		sched:    s,
		sink:     sink,
		provider: provider,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		queue:    newEventQueue(),
		ctx:      context.Background(),
	}
	e.timers = lockedScheduler{e: e}
	e.matchers = matcher.NewSet(e.timers)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// lockedScheduler runs every continuation under the engine lock, which
// serializes timer callbacks with key events and reloads.
type lockedScheduler struct {
	e *Engine
}

func (l lockedScheduler) Now() time.Time {
	return l.e.sched.Now()
}

func (l lockedScheduler) AfterFunc(d time.Duration, f func()) sched.Timer {
	return l.e.sched.AfterFunc(d, func() {
		l.e.mu.Lock()
		defer l.e.mu.Unlock()
		f()
	})
}

// Load replaces the running key maps with the enabled key maps of set.
//
// On the first load every binding is built. Later loads diff against the
// running set: unchanged bindings keep their matcher and dispatcher state,
// removed and changed ones are reset (releasing anything they hold) and
// rebuilt. A change of defaults rebuilds everything.
//
// Load is atomic: if any binding cannot be built, the running bindings are
// left untouched and the error is returned.
func (e *Engine) Load(set *keymap.Set, defaults config.Defaults) error {
	if err := defaults.Validate(); err != nil {
		return NewInvalidConfigError("", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	reuse := make(map[string]*binding)
	if e.loaded && defaults == e.defaults {
		diff := keymap.Compute(e.set, set)
		running := make(map[string]*binding, len(e.bindings))
		for _, b := range e.bindings {
			running[b.keyMap.UID] = b
		}
		for _, uid := range diff.Unchanged {
			reuse[uid] = running[uid]
		}
	}

	type pending struct {
		b      *binding
		keyMap keymap.KeyMap
		gate   []constraint.State
	}

	seen := make(map[string]bool)
	var next []pending
	for _, km := range set.Enabled() {
		if seen[km.UID] {
			return NewInvalidConfigError(km.UID, fmt.Errorf("duplicate key map uid"))
		}
		seen[km.UID] = true

		gate, err := set.Gate(km)
		if err != nil {
			return NewInvalidConfigError(km.UID, err)
		}
		if b, ok := reuse[km.UID]; ok {
			next = append(next, pending{b: b, keyMap: km, gate: gate})
			continue
		}
		b, err := e.newBinding(km, gate, defaults)
		if err != nil {
			return err
		}
		next = append(next, pending{b: b, keyMap: km, gate: gate})
	}

	for _, b := range e.bindings {
		if reuse[b.keyMap.UID] != b {
			e.teardown(b)
		}
	}

	bindings := make([]*binding, len(next))
	matchers := make([]*matcher.Matcher, len(next))
	for i, p := range next {
		p.b.keyMap = p.keyMap
		p.b.gate = p.gate
		bindings[i] = p.b
		matchers[i] = p.b.matcher
	}
	e.matchers.Replace(matchers)

	slog.Info("key maps loaded",
		"bindings", len(next),
		"kept", len(reuse),
		"rebuilt", len(next)-len(reuse),
	)

	e.bindings = bindings
	e.set = set
	e.defaults = defaults
	e.loaded = true
	return nil
}

// newBinding must be called with mu held.
func (e *Engine) newBinding(km keymap.KeyMap, gate []constraint.State, defaults config.Defaults) (*binding, error) {
	b := &binding{keyMap: km, gate: gate}

	m, err := matcher.New(km.Trigger, defaults.MatcherTiming(), e.timers, func(sig matcher.Signal) {
		e.onSignal(b, sig)
	})
	if err != nil {
		return nil, NewInvalidTriggerError(km.UID, err)
	}

	d, err := dispatch.New(km.Actions, defaults.DispatchTiming(), e.timers, journalSink{e: e, b: b},
		dispatch.WithContext(e.ctx),
		dispatch.WithErrorHandler(func(err error) {
			e.report(NewActionFailedError(b.keyMap.UID, b.firingID, err))
		}),
	)
	if err != nil {
		return nil, NewInvalidActionError(km.UID, err)
	}

	b.matcher = m
	b.dispatcher = d
	return b, nil
}

// teardown must be called with mu held.
func (e *Engine) teardown(b *binding) {
	b.firingID = ""
	b.matcher.Reset()
	b.dispatcher.Reset()
}

// Handle feeds one key event to every binding in key map order and reports
// whether any matched trigger consumes it. A zero event time means now.
//
// A short press that shares its key with a long or double press of another
// binding waits until that trigger either fires or gives up; see
// matcher.Set.
func (e *Engine) Handle(ev matcher.KeyEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.Time.IsZero() {
		ev.Time = e.sched.Now()
	}

	consumed := e.matchers.Handle(ev)

	slog.Debug("key event handled", "event", ev.String(), "consumed", consumed)
	return consumed
}

// onSignal is the matcher listener. It runs with mu held: either inside
// Handle or inside a lockedScheduler continuation.
func (e *Engine) onSignal(b *binding, sig matcher.Signal) {
	satisfied := true
	if sig.Kind == matcher.Fired {
		snap := constraint.NewLazySnapshot(e.provider.Snapshot())
		satisfied = constraint.IsSatisfied(snap, b.gate...)
	}

	f := Firing{
		ID:        e.ids.Generate(),
		KeyMapUID: b.keyMap.UID,
		Signal:    sig,
		Satisfied: satisfied,
		At:        e.sched.Now(),
	}
	b.firingID = f.ID
	e.journalFiring(b, f)
	if e.onFiring != nil {
		e.onFiring(f)
	}

	switch {
	case sig.Kind == matcher.Released:
		slog.Debug("trigger released", "keymap", b.keyMap.UID, "firing", f.ID)
		_ = b.dispatcher.OnReleased(sig.MetaState)
	case satisfied:
		slog.Debug("trigger fired", "keymap", b.keyMap.UID, "firing", f.ID, "from_release", sig.FromRelease)
		_ = b.dispatcher.OnTriggered(sig.FromRelease, sig.MetaState)
	default:
		slog.Debug("trigger blocked by constraints", "keymap", b.keyMap.UID, "firing", f.ID)
	}
}

// Reset cancels every walk and repeat and releases every held action.
// Bindings stay loaded.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matchers.Reset()
	for _, b := range e.bindings {
		e.teardown(b)
	}
}

// Bindings returns the UIDs of the running key maps in match order.
func (e *Engine) Bindings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	uids := make([]string, len(e.bindings))
	for i, b := range e.bindings {
		uids[i] = b.keyMap.UID
	}
	return uids
}

// Idle reports whether no binding is walking, repeating or holding and no
// short press is waiting on a longer one.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	bindings := e.bindings
	e.mu.Unlock()

	if e.matchers.Pending() > 0 {
		return false
	}

	for _, b := range bindings {
		if !b.dispatcher.Idle() {
			return false
		}
	}
	return true
}

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// QueueLen returns the number of events waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run processes queued events until the context is cancelled or Stop is
// called and the queue is drained. On return every binding is reset, so
// nothing is left held down.
//
// ERROR HANDLING: On event processing failure, the error is logged with the
// event context and processing continues.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")
	defer e.Reset()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed.
			if e.queue.Len() == 0 {
				e.queue.mu.Lock()
				closed := e.queue.closed
				e.queue.mu.Unlock()
				if closed {
					slog.Info("engine stopping: queue closed")
					return nil
				}
			}
		}
	}
}

// Stop closes the event queue. Run returns once the queued events are done.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes an event to the appropriate handler.
func (e *Engine) processEvent(event Event) error {
	switch event.Type {
	case EventTypeKey:
		e.Handle(event.Key)
		return nil

	case EventTypeReload:
		if event.Config == nil {
			return fmt.Errorf("reload event missing config")
		}
		return e.Load(event.Config.Set, event.Config.Defaults)

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// logEventError logs event processing failures with full context.
func logEventError(event Event, err error) {
	switch event.Type {
	case EventTypeKey:
		slog.Error("key event processing failed",
			"error", err,
			"event", event.Key.String(),
		)
	case EventTypeReload:
		source := ""
		if event.Config != nil {
			source = event.Config.Source
		}
		slog.Error("reload rejected, keeping running key maps",
			"error", err,
			"source", source,
		)
	default:
		slog.Error("event processing failed",
			"error", err,
			"event_type", int(event.Type),
		)
	}
}

func (e *Engine) report(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}

// journalFiring must be called with mu held.
func (e *Engine) journalFiring(b *binding, f Firing) {
	if e.store == nil {
		return
	}
	kind := store.KindFired
	if f.Signal.Kind == matcher.Released {
		kind = store.KindReleased
	}
	err := e.store.WriteFiring(e.ctx, store.Firing{
		ID:          f.ID,
		Seq:         e.clock.Next(),
		KeyMapUID:   b.keyMap.UID,
		Trigger:     b.keyMap.Trigger.String(),
		Kind:        kind,
		FromRelease: f.Signal.FromRelease,
		MetaState:   f.Signal.MetaState,
		Satisfied:   f.Satisfied,
		At:          f.At,
	})
	if err != nil {
		slog.Error("journal write failed", "keymap", b.keyMap.UID, "firing", f.ID, "error", err)
	}
}

// journalSink forwards to the engine's sink and journals every call.
// It runs with the engine lock held.
type journalSink struct {
	e *Engine
	b *binding
}

func (s journalSink) Perform(ctx context.Context, data action.Data, ev action.InputEventType, metaState int) error {
	err := s.e.sink.Perform(ctx, data, ev, metaState)
	if s.e.store == nil {
		return err
	}

	p := store.Perform{
		Seq:       s.e.clock.Next(),
		FiringID:  s.b.firingID,
		KeyMapUID: s.b.keyMap.UID,
		Action:    data,
		Event:     ev,
		MetaState: metaState,
		At:        s.e.sched.Now(),
	}
	if err != nil {
		p.Error = err.Error()
	}
	if werr := s.e.store.WritePerform(ctx, p); werr != nil {
		slog.Error("journal write failed", "keymap", s.b.keyMap.UID, "seq", p.Seq, "error", werr)
	}
	return err
}
