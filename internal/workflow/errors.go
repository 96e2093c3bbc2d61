package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors let callers classify failures without string matching. The
// API layer maps them onto HTTP status codes.
var (
	// ErrState marks a local precondition violation (intake missing,
	// disallowed status transition). Never retried automatically.
	ErrState = errors.New("state error")

	// ErrConflict marks failures where a caller should re-fetch and decide
	// (plan already generated, competing override).
	ErrConflict = errors.New("conflict")

	// ErrValidation marks malformed input caught before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing case or step.
	ErrNotFound = errors.New("not found")
)

// StateErrorf builds an error wrapping ErrState.
func StateErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrState}, args...)...)
}

// ConflictErrorf builds an error wrapping ErrConflict.
func ConflictErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflict}, args...)...)
}

// ValidationErrorf builds an error wrapping ErrValidation.
func ValidationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}
