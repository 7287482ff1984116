package engine

import (
	"sync"

	"github.com/roach88/keyflow/internal/config"
	"github.com/roach88/keyflow/internal/matcher"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeKey carries a normalized key event.
	EventTypeKey EventType = iota + 1
	// EventTypeReload carries a freshly loaded configuration.
	EventTypeReload
)

func (t EventType) String() string {
	switch t {
	case EventTypeKey:
		return "key"
	case EventTypeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Event wraps key events and reloads for the event queue.
type Event struct {
	Type   EventType
	Key    matcher.KeyEvent
	Config *config.Config
}

// KeyEvent wraps a key event for Enqueue.
func KeyEvent(ev matcher.KeyEvent) Event {
	return Event{Type: EventTypeKey, Key: ev}
}

// ReloadEvent wraps a configuration for Enqueue.
func ReloadEvent(cfg *config.Config) Event {
	return Event{Type: EventTypeReload, Config: cfg}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that input readers and the config watcher never
// block on a slow sink.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain the config.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
