package store

import (
	"time"

	"github.com/roach88/keyflow/internal/action"
)

// Signal kinds recorded in Firing.Kind.
const (
	KindFired    = "fired"
	KindReleased = "released"
)

// Firing is one trigger signal and the outcome of its constraint gate.
// Released signals have no gate and are recorded as satisfied.
type Firing struct {
	ID          string
	Seq         int64
	KeyMapUID   string
	Trigger     string
	Kind        string
	FromRelease bool
	MetaState   int
	Satisfied   bool
	At          time.Time
}

// Perform is one call made to the execution sink.
type Perform struct {
	Seq int64

	// FiringID is the signal that led to the call. It is empty for calls
	// made while tearing a binding down.
	FiringID  string
	KeyMapUID string
	Action    action.Data
	Event     action.InputEventType
	MetaState int

	// Error is the sink's error message, empty on success.
	Error string
	At    time.Time
}
