package domain

import (
	"fmt"
)

// ValidationError reports a malformed or logically inconsistent input.
// It is raised before any network call and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PrecisionError reports a value that collapsed to zero or negative
// after rounding down to the exchange step. Treated as a validation
// failure by callers.
type PrecisionError struct {
	Field string
	Value string
	Step  string
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("precision adjustment of %s collapsed %s to zero (step %s)", e.Field, e.Value, e.Step)
}

// OrderRejectedError means the exchange refused a well-formed order.
// Never retried; Reason carries the exchange message verbatim.
type OrderRejectedError struct {
	Op     string
	Code   int
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("%s rejected by exchange (code %d): %s", e.Op, e.Code, e.Reason)
}

// TransientError covers timeouts, connection resets, 5xx responses and
// rate-limit (429) replies. Retried with backoff up to a fixed bound.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
