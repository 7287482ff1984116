package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/keyflow/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

func performMatches(e TraceEvent, a Assertion) bool {
	if e.Type != EventPerform || e.Action != a.Action {
		return false
	}
	if a.Event != "" && e.Event != a.Event {
		return false
	}
	return a.KeyMap == "" || e.KeyMap == a.KeyMap
}

// assertPerformed checks that the trace contains a matching perform.
func assertPerformed(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if performMatches(event, a) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertPerformed,
		Expected: fmt.Sprintf("perform of %s %s", a.Action, a.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertPerformOrder checks that the listed performs appear in order.
// Intervening performs are allowed.
func assertPerformOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.Performs) {
			break
		}
		if event.Type == EventPerform && event.PerformKey() == a.Performs[next] {
			next++
		}
	}
	if next == len(a.Performs) {
		return nil
	}

	return &AssertionError{
		Type:     AssertPerformOrder,
		Expected: fmt.Sprintf("performs in order: %v", a.Performs),
		Actual:   fmt.Sprintf("%q not found after %v", a.Performs[next], a.Performs[:next]),
		Trace:    trace,
	}
}

// assertPerformCount counts performs. An action filters like performed;
// otherwise only the key map filters.
func assertPerformCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != EventPerform {
			continue
		}
		if a.Action != "" && !performMatches(event, a) {
			continue
		}
		if a.Action == "" && a.KeyMap != "" && event.KeyMap != a.KeyMap {
			continue
		}
		count++
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertPerformCount,
			Expected: fmt.Sprintf("%d performs", *a.Count),
			Actual:   fmt.Sprintf("%d performs", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFiringCount counts firings, optionally filtered by key map and
// signal. The "blocked" signal counts fired signals whose gate failed.
func assertFiringCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != EventFiring {
			continue
		}
		if a.KeyMap != "" && event.KeyMap != a.KeyMap {
			continue
		}
		switch a.Signal {
		case "":
		case "blocked":
			if !event.Blocked() {
				continue
			}
		default:
			if event.Signal != a.Signal {
				continue
			}
		}
		count++
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertFiringCount,
			Expected: fmt.Sprintf("%d %s firings of %q", *a.Count, a.Signal, a.KeyMap),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournal compares journal summary counts. Only the listed counts are
// checked.
func assertJournal(ctx context.Context, st *store.Store, a Assertion) error {
	sum, err := st.Summarize(ctx, a.KeyMap)
	if err != nil {
		return fmt.Errorf("journal assertion: %w", err)
	}
	actual := map[string]int{
		"firings":  sum.Firings,
		"blocked":  sum.Blocked,
		"performs": sum.Performs,
		"failed":   sum.Failed,
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if actual[key] != a.Expect[key] {
			return &AssertionError{
				Type:     AssertJournal,
				Expected: fmt.Sprintf("%s = %d", key, a.Expect[key]),
				Actual:   fmt.Sprintf("%s = %d", key, actual[key]),
			}
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for journal assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPerformed:
			err = assertPerformed(result.Trace, assertion)
		case AssertPerformOrder:
			err = assertPerformOrder(result.Trace, assertion)
		case AssertPerformCount:
			err = assertPerformCount(result.Trace, assertion)
		case AssertFiringCount:
			err = assertFiringCount(result.Trace, assertion)
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a store", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, assertion)
			}
		case AssertIdle:
			if !result.Idle {
				err = &AssertionError{
					Type:     AssertIdle,
					Expected: "nothing held, walking or repeating",
					Actual:   "engine busy at end of scenario",
					Trace:    result.Trace,
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
