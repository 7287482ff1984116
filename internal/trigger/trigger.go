package trigger

import (
	"fmt"
	"strings"
	"time"
)

// ModeKind is how the keys of a trigger combine.
type ModeKind int

const (
	// Undefined is a single-key trigger.
	Undefined ModeKind = iota
	// Parallel keys must all be held down at the same time.
	Parallel
	// Sequence keys must be pressed one after another in order.
	Sequence
)

func (m ModeKind) String() string {
	switch m {
	case Undefined:
		return "single"
	case Parallel:
		return "parallel"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("ModeKind(%d)", int(m))
	}
}

// Mode is the trigger combination mode. ClickType is only used by Parallel,
// where it classifies the whole chord.
type Mode struct {
	Kind      ModeKind
	ClickType ClickType
}

// SingleMode returns the Undefined mode.
func SingleMode() Mode { return Mode{Kind: Undefined} }

// ParallelMode returns a Parallel mode with the given chord click type.
func ParallelMode(c ClickType) Mode { return Mode{Kind: Parallel, ClickType: c} }

// SequenceMode returns the Sequence mode.
func SequenceMode() Mode { return Mode{Kind: Sequence} }

func (m Mode) String() string {
	if m.Kind == Parallel {
		return "parallel(" + m.ClickType.String() + ")"
	}
	return m.Kind.String()
}

// Trigger is an ordered key list plus the mode that combines the keys.
//
// The timing fields override the global defaults for this trigger only.
// A nil override means "use the default".
type Trigger struct {
	Keys []Key
	Mode Mode

	LongPressDelay   *time.Duration
	DoublePressDelay *time.Duration
	SequenceTimeout  *time.Duration
}

// ValidationError describes a malformed trigger.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trigger: %s: %s", e.Field, e.Message)
}

// Validate checks the structural invariants of a trigger:
//   - Undefined needs exactly one key.
//   - Parallel and Sequence need at least two keys.
//   - A Parallel chord cannot be a double press, and every key carries the
//     chord's click type.
//   - Timing overrides are positive.
func (t Trigger) Validate() error {
	switch t.Mode.Kind {
	case Undefined:
		if len(t.Keys) != 1 {
			return &ValidationError{Field: "keys", Message: fmt.Sprintf("single-key trigger needs exactly 1 key, got %d", len(t.Keys))}
		}
	case Parallel, Sequence:
		if len(t.Keys) < 2 {
			return &ValidationError{Field: "keys", Message: fmt.Sprintf("%s trigger needs at least 2 keys, got %d", t.Mode.Kind, len(t.Keys))}
		}
	default:
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %d", int(t.Mode.Kind))}
	}

	if t.Mode.Kind == Parallel {
		if t.Mode.ClickType == DoublePress {
			return &ValidationError{Field: "mode", Message: "parallel trigger cannot be a double press"}
		}
		for i, k := range t.Keys {
			if k.ClickType != t.Mode.ClickType {
				return &ValidationError{
					Field:   fmt.Sprintf("keys[%d].click_type", i),
					Message: fmt.Sprintf("parallel key is %s but chord is %s", k.ClickType, t.Mode.ClickType),
				}
			}
		}
		seen := make(map[int]bool, len(t.Keys))
		for i, k := range t.Keys {
			if seen[k.KeyCode] {
				return &ValidationError{Field: fmt.Sprintf("keys[%d]", i), Message: fmt.Sprintf("duplicate key code %d in parallel trigger", k.KeyCode)}
			}
			seen[k.KeyCode] = true
		}
	}

	for i, k := range t.Keys {
		if k.Device.Kind == DeviceExternal && k.Device.Descriptor == "" {
			return &ValidationError{Field: fmt.Sprintf("keys[%d].device", i), Message: "external device needs a descriptor"}
		}
	}

	overrides := []struct {
		name string
		d    *time.Duration
	}{
		{"long_press_delay", t.LongPressDelay},
		{"double_press_delay", t.DoublePressDelay},
		{"sequence_timeout", t.SequenceTimeout},
	}
	for _, o := range overrides {
		if o.d != nil && *o.d <= 0 {
			return &ValidationError{Field: o.name, Message: "must be positive"}
		}
	}

	return nil
}

// ConsumesKey reports whether any key of the trigger consumes events with
// the given code from the given device.
func (t Trigger) ConsumesKey(keyCode int, external bool, descriptor string) bool {
	for _, k := range t.Keys {
		if k.Consume && k.MatchesCode(keyCode, external, descriptor) {
			return true
		}
	}
	return false
}

func (t Trigger) String() string {
	parts := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		parts[i] = k.String()
	}
	sep := " "
	switch t.Mode.Kind {
	case Parallel:
		sep = " + "
	case Sequence:
		sep = " -> "
	}
	return t.Mode.String() + "[" + strings.Join(parts, sep) + "]"
}
