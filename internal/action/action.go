// Package action defines the actions a trigger performs and the options that
// control how they are held, repeated and spaced out.
package action

import (
	"fmt"
	"time"
)

// InputEventType is the phase of an action sent to the execution sink.
type InputEventType int

const (
	// DownUp is a single tap: press and release.
	DownUp InputEventType = iota
	// Down presses and keeps the action held.
	Down
	// Up releases a held action.
	Up
)

func (t InputEventType) String() string {
	switch t {
	case Down:
		return "DOWN"
	case Up:
		return "UP"
	case DownUp:
		return "DOWN_UP"
	default:
		return fmt.Sprintf("InputEventType(%d)", int(t))
	}
}

// ParseInputEventType parses the String form of an InputEventType.
func ParseInputEventType(s string) (InputEventType, error) {
	switch s {
	case "DOWN_UP":
		return DownUp, nil
	case "DOWN":
		return Down, nil
	case "UP":
		return Up, nil
	}
	return DownUp, fmt.Errorf("unknown input event type %q", s)
}

// RepeatMode decides what stops a repeating action.
type RepeatMode int

const (
	// TriggerReleased stops repeating when the trigger is released.
	TriggerReleased RepeatMode = iota
	// TriggerPressedAgain stops repeating when the trigger fires again.
	TriggerPressedAgain
)

func (m RepeatMode) String() string {
	switch m {
	case TriggerReleased:
		return "trigger_released"
	case TriggerPressedAgain:
		return "trigger_pressed_again"
	default:
		return fmt.Sprintf("RepeatMode(%d)", int(m))
	}
}

// ParseRepeatMode parses the config spelling of a repeat mode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "trigger_released", "":
		return TriggerReleased, nil
	case "trigger_pressed_again":
		return TriggerPressedAgain, nil
	}
	return TriggerReleased, fmt.Errorf("unknown repeat mode %q", s)
}

// Action is one entry of a key map's action list. It is an immutable value:
// the dispatcher reads it but never modifies it.
//
// Nil optional fields fall back to the dispatcher defaults.
type Action struct {
	Data Data

	HoldDown   bool
	Repeat     bool
	RepeatMode RepeatMode

	RepeatLimit           *int
	RepeatRate            *time.Duration
	RepeatDelay           *time.Duration
	HoldDownDuration      *time.Duration
	DelayBeforeNextAction *time.Duration
	Multiplier            *int

	StopHoldDownWhenTriggerPressedAgain bool
}

// Times returns how many times the dispatched unit is performed.
func (a Action) Times() int {
	if a.Multiplier == nil || *a.Multiplier < 1 {
		return 1
	}
	return *a.Multiplier
}

// Validate checks option ranges.
func (a Action) Validate() error {
	if a.Multiplier != nil && *a.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %d", *a.Multiplier)
	}
	if a.RepeatLimit != nil && *a.RepeatLimit < 1 {
		return fmt.Errorf("repeat limit must be at least 1, got %d", *a.RepeatLimit)
	}
	durations := []struct {
		name string
		d    *time.Duration
	}{
		{"repeat_rate", a.RepeatRate},
		{"repeat_delay", a.RepeatDelay},
		{"hold_down_duration", a.HoldDownDuration},
		{"delay_before_next_action", a.DelayBeforeNextAction},
	}
	for _, o := range durations {
		if o.d != nil && *o.d < 0 {
			return fmt.Errorf("%s must not be negative", o.name)
		}
	}
	if a.RepeatRate != nil && *a.RepeatRate == 0 {
		return fmt.Errorf("repeat_rate must be positive")
	}
	return a.Data.Validate()
}
