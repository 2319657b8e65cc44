// Package errors defines the checkpointing error taxonomy and how each
// class of failure should be handled by callers.
package errors

import "errors"

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: store timeouts, connection loss, write conflicts.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: missing store configuration, malformed input.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var notConfErr *NotConfiguredError
	if errors.As(err, &notConfErr) {
		return CategoryPermanent
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryPermanent
	}

	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return CategoryTransient
	}

	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried by the caller.
// The service itself never retries; this classifies surfaced failures.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
