package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/keyflow/internal/action"
)

// Performed is one call recorded by RecordingSink.
type Performed struct {
	// At is the scheduler time of the call relative to the sink's creation.
	At        time.Duration
	Data      action.Data
	Event     action.InputEventType
	MetaState int
}

// String renders the call as "<at> <event> <data>", e.g. "200ms DOWN_UP key_event(29)".
func (p Performed) String() string {
	return fmt.Sprintf("%s %s %s", p.At, p.Event, p.Data)
}

// Nower is the part of a scheduler the sink needs to timestamp calls.
type Nower interface {
	Now() time.Time
}

// RecordingSink records every Perform call in order.
//
// It satisfies dispatch.Sink without importing it, so dispatcher tests in
// package dispatch can use it.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSink struct {
	mu       sync.Mutex
	clock    Nower
	start    time.Time
	performs []Performed
	failWith error
}

// NewRecordingSink creates a sink that timestamps calls with clock.
func NewRecordingSink(clock Nower) *RecordingSink {
	return &RecordingSink{clock: clock, start: clock.Now()}
}

// Perform records the call. If FailWith was set, the call is still recorded
// and the configured error is returned.
func (s *RecordingSink) Perform(_ context.Context, data action.Data, ev action.InputEventType, metaState int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performs = append(s.performs, Performed{
		At:        s.clock.Now().Sub(s.start),
		Data:      data,
		Event:     ev,
		MetaState: metaState,
	})
	return s.failWith
}

// FailWith makes every later call return err. A nil err restores success.
func (s *RecordingSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Performs returns a copy of the recorded calls.
func (s *RecordingSink) Performs() []Performed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Performed, len(s.performs))
	copy(out, s.performs)
	return out
}

// Lines returns the recorded calls rendered with Performed.String.
func (s *RecordingSink) Lines() []string {
	var out []string
	for _, p := range s.Performs() {
		out = append(out, p.String())
	}
	return out
}

// Clear forgets the recorded calls.
func (s *RecordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performs = nil
}
