// Package checkpoint provides persistent storage for conversation thread
// state, message history, and thread metadata.
package checkpoint

import (
	"context"
	"errors"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/config"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// Configuration map keys every store call is scoped by.
// The checkpoint service injects KeyUser and KeyUserID before forwarding.
const (
	KeyThreadID = "thread_id"
	KeyUser     = "user"
	KeyUserID   = "user_id"
)

// Store is the durable backend for thread state, messages, and metadata.
// Implementations must be safe for concurrent use; the service above this
// interface holds no locks of its own.
//
// Every method receives the full per-call configuration map and derives
// its (user_id, thread_id) scope from it.
type Store interface {
	// GetState returns the persisted state for the scoped thread.
	// Returns ErrNotFound if no state exists.
	GetState(ctx context.Context, cfg config.Config) (*state.AgentState, error)

	// GetStateCache returns the secondary cached copy of the state.
	// Serves the first-write-after-eviction path when the primary read
	// misses. Returns ErrNotFound if no cached copy exists.
	GetStateCache(ctx context.Context, cfg config.Config) (*state.AgentState, error)

	// PutState durably stores the state, creating the thread implicitly
	// for an unseen thread id. Returns the stored state.
	PutState(ctx context.Context, cfg config.Config, st *state.AgentState) (*state.AgentState, error)

	// ClearState deletes the state for the scoped thread.
	// Reports whether a state existed; clearing an empty thread is not an error.
	ClearState(ctx context.Context, cfg config.Config) (bool, error)

	// PutMessages appends messages to the scoped thread's history.
	// Metadata, if non-nil, is attached to each stored message.
	PutMessages(ctx context.Context, cfg config.Config, msgs []state.Message, metadata map[string]any) error

	// GetMessage returns one message by id.
	// Returns ErrNotFound if the message doesn't exist.
	GetMessage(ctx context.Context, cfg config.Config, messageID string) (*state.Message, error)

	// ListMessages returns the thread's messages in insertion order,
	// optionally filtered by a substring search over message text, with
	// offset/limit pagination (limit <= 0 means no limit).
	ListMessages(ctx context.Context, cfg config.Config, search string, offset, limit int) ([]state.Message, error)

	// DeleteMessage removes one message by id.
	// Returns nil if the message doesn't exist.
	DeleteMessage(ctx context.Context, cfg config.Config, messageID string) error

	// GetThread returns the scoped thread's metadata.
	// Returns ErrNotFound if the thread was never created.
	GetThread(ctx context.Context, cfg config.Config) (*state.Thread, error)

	// ListThreads returns the user's threads, newest first, optionally
	// filtered by a substring search over thread names, with offset/limit
	// pagination (limit <= 0 means no limit).
	ListThreads(ctx context.Context, cfg config.Config, search string, offset, limit int) ([]state.Thread, error)

	// CleanThread removes the thread's state, cached state, messages,
	// and metadata together. Returns nil for an unseen thread.
	CleanThread(ctx context.Context, cfg config.Config) error

	// Close releases any resources (connections, files).
	Close() error
}

// Scope identifies the tenant and thread a store call applies to.
type Scope struct {
	UserID   string
	ThreadID string
}

// ScopeFrom extracts the scope from a configuration map.
func ScopeFrom(cfg config.Config) Scope {
	return Scope{
		UserID:   cfg.String(KeyUserID, ""),
		ThreadID: cfg.String(KeyThreadID, ""),
	}
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested state, message, or thread doesn't exist.
	ErrNotFound = errors.New("checkpoint: not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint: store closed")
)
