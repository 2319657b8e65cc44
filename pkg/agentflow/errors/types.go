package errors

import "fmt"

// NotConfiguredError indicates the persistence store was never wired in.
// Fatal for the call; never retried.
type NotConfiguredError struct {
	Component string
}

// Error implements the error interface.
func (e *NotConfiguredError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s is not available or not initialized", e.Component)
	}
	return "checkpointer is not available or not initialized"
}

// ValidationError indicates malformed input reaching the service.
// Rejected before any persistence call is attempted.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// PersistenceError wraps any failure surfaced by the persistence store:
// timeouts, connection loss, serialization failures.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConflictError indicates a compare-and-swap rejection from a store that
// enforces optimistic concurrency on state writes. Retryable: re-read the
// state and re-apply the merge.
type ConflictError struct {
	ThreadID string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("state for thread %s changed since it was read", e.ThreadID)
}
