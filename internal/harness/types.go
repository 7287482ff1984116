package harness

import (
	"fmt"
	"strings"
	"time"
)

// Trace event types.
const (
	EventFiring  = "firing"
	EventPerform = "perform"
)

// TraceEvent is one journal record of a scenario run, with its time as an
// offset from the scenario start.
type TraceEvent struct {
	Type   string        `json:"type"`
	Seq    int64         `json:"seq"`
	At     time.Duration `json:"at"`
	KeyMap string        `json:"keymap"`

	// Firing fields. Signal is "fired" or "released".
	FiringID    string `json:"firing_id,omitempty"`
	Signal      string `json:"signal,omitempty"`
	Satisfied   bool   `json:"satisfied,omitempty"`
	FromRelease bool   `json:"from_release,omitempty"`

	// Perform fields.
	Action string `json:"action,omitempty"`
	Event  string `json:"event,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Blocked reports whether the event is a fired signal whose gate failed.
func (e TraceEvent) Blocked() bool {
	return e.Type == EventFiring && e.Signal == "fired" && !e.Satisfied
}

// String renders the event as one trace line, e.g.
//
//	500ms #1 fired volume firing-1
//	500ms #2 perform volume DOWN_UP key_event(25)
func (e TraceEvent) String() string {
	var b strings.Builder
	if e.Type == EventPerform {
		fmt.Fprintf(&b, "%s #%d perform %s %s %s", e.At, e.Seq, e.KeyMap, e.Event, e.Action)
		if e.Error != "" {
			fmt.Fprintf(&b, " error=%q", e.Error)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "%s #%d %s %s %s", e.At, e.Seq, e.Signal, e.KeyMap, e.FiringID)
	if e.FromRelease {
		b.WriteString(" from_release")
	}
	if e.Blocked() {
		b.WriteString(" blocked")
	}
	return b.String()
}

// PerformKey is the "<EVENT> <action>" form used by perform_order assertions.
func (e TraceEvent) PerformKey() string {
	return e.Event + " " + e.Action
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds the journal of the run in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ActionFailures counts ACTION_FAILED errors reported by the engine.
	ActionFailures int `json:"action_failures"`

	// Idle is whether nothing was held, walking or repeating at the end.
	Idle bool `json:"idle"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Performs returns the perform events of the trace.
func (r *Result) Performs() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventPerform {
			out = append(out, e)
		}
	}
	return out
}

// Render returns the trace as text, one event per line.
func (r *Result) Render() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
