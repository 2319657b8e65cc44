package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	agerrors "github.com/10xHub/agentflow-cli/pkg/agentflow/errors"
	"github.com/stretchr/testify/assert"
)

// TestErrorMessages verifies error string formatting.
func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"not configured with component",
			&agerrors.NotConfiguredError{Component: "checkpointer store"},
			"checkpointer store is not available or not initialized",
		},
		{
			"not configured default",
			&agerrors.NotConfiguredError{},
			"checkpointer is not available or not initialized",
		},
		{
			"validation with field",
			&agerrors.ValidationError{Field: "thread_id", Message: "is required"},
			"validation error on thread_id: is required",
		},
		{
			"validation without field",
			&agerrors.ValidationError{Message: "state is nil"},
			"validation error: state is nil",
		},
		{
			"persistence",
			&agerrors.PersistenceError{Op: "get_state", Err: stderrors.New("connection reset")},
			"persistence failure during get_state: connection reset",
		},
		{
			"conflict",
			&agerrors.ConflictError{ThreadID: "th-1"},
			"state for thread th-1 changed since it was read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// TestPersistenceErrorUnwrap verifies errors.Is works through the wrapper.
func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := &agerrors.PersistenceError{Op: "put_state", Err: cause}

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(fmt.Errorf("outer: %w", err), cause))
}

// TestCategorize verifies the taxonomy mapping.
func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want agerrors.Category
	}{
		{"nil", nil, agerrors.CategoryPermanent},
		{"not configured", &agerrors.NotConfiguredError{}, agerrors.CategoryPermanent},
		{"validation", &agerrors.ValidationError{Message: "bad"}, agerrors.CategoryPermanent},
		{"conflict", &agerrors.ConflictError{ThreadID: "t"}, agerrors.CategoryTransient},
		{
			"persistence",
			&agerrors.PersistenceError{Op: "op", Err: stderrors.New("timeout")},
			agerrors.CategoryTransient,
		},
		{
			"wrapped persistence",
			fmt.Errorf("outer: %w", &agerrors.PersistenceError{Op: "op", Err: stderrors.New("x")}),
			agerrors.CategoryTransient,
		},
		{"unknown", stderrors.New("mystery"), agerrors.CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agerrors.Categorize(tt.err))
		})
	}
}

// TestIsRetryable verifies retry classification.
func TestIsRetryable(t *testing.T) {
	assert.True(t, agerrors.IsRetryable(&agerrors.ConflictError{ThreadID: "t"}))
	assert.True(t, agerrors.IsRetryable(&agerrors.PersistenceError{Op: "op", Err: stderrors.New("x")}))
	assert.False(t, agerrors.IsRetryable(&agerrors.ValidationError{Message: "bad"}))
	assert.False(t, agerrors.IsRetryable(nil))
}

// TestCategoryString verifies category names.
func TestCategoryString(t *testing.T) {
	assert.Equal(t, "transient", agerrors.CategoryTransient.String())
	assert.Equal(t, "permanent", agerrors.CategoryPermanent.String())
	assert.Equal(t, "unknown", agerrors.Category(99).String())
}
