package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while loading or running key maps.
//
// Runtime errors include:
//   - Invalid trigger: a key map's trigger cannot be matched
//   - Invalid action: a key map's action list cannot be dispatched
//   - Invalid config: duplicate UIDs, broken group chains or unusable defaults
//   - Action failed: the execution sink rejected an action
//
// None of them is fatal. Load errors leave the previous bindings in place;
// action failures are reported and the walk carries on.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// KeyMapUID identifies the affected key map.
	KeyMapUID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying error, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidTrigger indicates a trigger failed validation.
	ErrCodeInvalidTrigger RuntimeErrorCode = "INVALID_TRIGGER"

	// ErrCodeInvalidAction indicates an action list failed validation.
	ErrCodeInvalidAction RuntimeErrorCode = "INVALID_ACTION"

	// ErrCodeInvalidConfig indicates the key map set as a whole is unusable.
	ErrCodeInvalidConfig RuntimeErrorCode = "INVALID_CONFIG"

	// ErrCodeActionFailed indicates the sink failed to perform an action.
	ErrCodeActionFailed RuntimeErrorCode = "ACTION_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.KeyMapUID != "" {
		return fmt.Sprintf("%s: %s (keymap=%s)", e.Code, e.Message, e.KeyMapUID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsInvalidTrigger returns true if the error is a trigger validation error.
// Uses errors.As to handle wrapped errors.
func IsInvalidTrigger(err error) bool {
	return hasCode(err, ErrCodeInvalidTrigger)
}

// IsInvalidAction returns true if the error is an action validation error.
func IsInvalidAction(err error) bool {
	return hasCode(err, ErrCodeInvalidAction)
}

// IsInvalidConfig returns true if the error rejects the key map set.
func IsInvalidConfig(err error) bool {
	return hasCode(err, ErrCodeInvalidConfig)
}

// IsActionFailed returns true if the error is a sink failure.
func IsActionFailed(err error) bool {
	return hasCode(err, ErrCodeActionFailed)
}

// NewInvalidTriggerError creates a RuntimeError for a rejected trigger.
func NewInvalidTriggerError(keyMapUID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInvalidTrigger,
		Message:   err.Error(),
		KeyMapUID: keyMapUID,
		Err:       err,
	}
}

// NewInvalidActionError creates a RuntimeError for a rejected action list.
func NewInvalidActionError(keyMapUID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInvalidAction,
		Message:   err.Error(),
		KeyMapUID: keyMapUID,
		Err:       err,
	}
}

// NewInvalidConfigError creates a RuntimeError for an unusable key map set.
func NewInvalidConfigError(keyMapUID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInvalidConfig,
		Message:   err.Error(),
		KeyMapUID: keyMapUID,
		Err:       err,
	}
}

// NewActionFailedError creates a RuntimeError for a sink failure during the
// firing with the given ID.
func NewActionFailedError(keyMapUID, firingID string, err error) *RuntimeError {
	re := &RuntimeError{
		Code:      ErrCodeActionFailed,
		Message:   "sink failed to perform action",
		KeyMapUID: keyMapUID,
		Err:       err,
	}
	if firingID != "" {
		re.Details = map[string]string{"firing_id": firingID}
	}
	return re
}
