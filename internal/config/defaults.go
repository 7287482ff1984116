// Package config loads key map configurations and the global timing
// defaults.
//
// Defaults come from three layers, later ones winning: the built-in values,
// KEYFLOW_* environment variables (optionally read from a .env file) and the
// defaults block of the loaded configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/roach88/keyflow/internal/dispatch"
	"github.com/roach88/keyflow/internal/matcher"
)

// Defaults are the global delays a binding captures at construction.
type Defaults struct {
	LongPressDelay         time.Duration
	DoublePressDelay       time.Duration
	RepeatDelay            time.Duration
	RepeatRate             time.Duration
	SequenceTriggerTimeout time.Duration
	HoldDownDuration       time.Duration
}

// DefaultDefaults returns the built-in defaults.
func DefaultDefaults() Defaults {
	m := matcher.DefaultTiming()
	d := dispatch.DefaultTiming()
	return Defaults{
		LongPressDelay:         m.LongPressDelay,
		DoublePressDelay:       m.DoublePressDelay,
		RepeatDelay:            d.RepeatDelay,
		RepeatRate:             d.RepeatRate,
		SequenceTriggerTimeout: m.SequenceTimeout,
		HoldDownDuration:       d.HoldDownDuration,
	}
}

// Validate rejects delays no binding can run with.
func (d Defaults) Validate() error {
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"long_press_delay", d.LongPressDelay},
		{"double_press_delay", d.DoublePressDelay},
		{"repeat_rate", d.RepeatRate},
		{"sequence_trigger_timeout", d.SequenceTriggerTimeout},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", p.name, p.v)
		}
	}
	if d.RepeatDelay < 0 {
		return fmt.Errorf("repeat_delay must not be negative, got %s", d.RepeatDelay)
	}
	if d.HoldDownDuration < 0 {
		return fmt.Errorf("hold_down_duration must not be negative, got %s", d.HoldDownDuration)
	}
	return nil
}

// MatcherTiming returns the delays used by trigger matchers.
func (d Defaults) MatcherTiming() matcher.Timing {
	return matcher.Timing{
		LongPressDelay:   d.LongPressDelay,
		DoublePressDelay: d.DoublePressDelay,
		SequenceTimeout:  d.SequenceTriggerTimeout,
	}
}

// DispatchTiming returns the delays used by action dispatchers.
func (d Defaults) DispatchTiming() dispatch.Timing {
	return dispatch.Timing{
		RepeatDelay:      d.RepeatDelay,
		RepeatRate:       d.RepeatRate,
		HoldDownDuration: d.HoldDownDuration,
	}
}

// Environment variables that override the built-in defaults, in milliseconds.
const (
	EnvLongPressDelay         = "KEYFLOW_LONG_PRESS_DELAY_MS"
	EnvDoublePressDelay       = "KEYFLOW_DOUBLE_PRESS_DELAY_MS"
	EnvRepeatDelay            = "KEYFLOW_REPEAT_DELAY_MS"
	EnvRepeatRate             = "KEYFLOW_REPEAT_RATE_MS"
	EnvSequenceTriggerTimeout = "KEYFLOW_SEQUENCE_TRIGGER_TIMEOUT_MS"
	EnvHoldDownDuration       = "KEYFLOW_HOLD_DOWN_DURATION_MS"
)

// FromEnv returns the built-in defaults with KEYFLOW_* overrides applied.
// When envFile is non-empty it is loaded first; variables already set in
// the process environment win over the file. A missing file is not an error.
func FromEnv(envFile string) (Defaults, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Defaults{}, fmt.Errorf("loading %s: %w", envFile, err)
			}
			slog.Debug("no env file", "path", envFile)
		}
	}

	d := DefaultDefaults()
	envMillis(EnvLongPressDelay, &d.LongPressDelay)
	envMillis(EnvDoublePressDelay, &d.DoublePressDelay)
	envMillis(EnvRepeatDelay, &d.RepeatDelay)
	envMillis(EnvRepeatRate, &d.RepeatRate)
	envMillis(EnvSequenceTriggerTimeout, &d.SequenceTriggerTimeout)
	envMillis(EnvHoldDownDuration, &d.HoldDownDuration)

	if err := d.Validate(); err != nil {
		return Defaults{}, fmt.Errorf("environment defaults: %w", err)
	}
	return d, nil
}

// envMillis overwrites dst when the variable holds an integer. Anything
// else is logged and ignored.
func envMillis(name string, dst *time.Duration) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("ignoring invalid duration", "env", name, "value", raw)
		return
	}
	*dst = time.Duration(ms) * time.Millisecond
	slog.Debug("default overridden from environment", "env", name, "ms", ms)
}
