package checkpoint

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/config"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// MemoryStore is an in-memory store for testing and single-process use.
// Data is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[Scope]*state.AgentState
	cache    map[Scope]*state.AgentState
	messages map[Scope][]state.Message
	threads  map[Scope]*state.Thread
	closed   bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[Scope]*state.AgentState),
		cache:    make(map[Scope]*state.AgentState),
		messages: make(map[Scope][]state.Message),
		threads:  make(map[Scope]*state.Thread),
	}
}

// GetState implements Store.
func (m *MemoryStore) GetState(_ context.Context, cfg config.Config) (*state.AgentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	st, ok := m.states[ScopeFrom(cfg)]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// GetStateCache implements Store.
func (m *MemoryStore) GetStateCache(_ context.Context, cfg config.Config) (*state.AgentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	st, ok := m.cache[ScopeFrom(cfg)]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// PutState implements Store. The state is written to both the primary map
// and the cache, and the thread record is created or touched.
func (m *MemoryStore) PutState(_ context.Context, cfg config.Config, st *state.AgentState) (*state.AgentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	stored := st.Clone()
	m.states[scope] = stored
	m.cache[scope] = stored
	m.touchThread(scope)

	return stored.Clone(), nil
}

// ClearState implements Store. Clearing an empty thread is a no-op.
func (m *MemoryStore) ClearState(_ context.Context, cfg config.Config) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	_, existed := m.states[scope]
	delete(m.states, scope)
	delete(m.cache, scope)
	return existed, nil
}

// EvictState drops only the primary copy of a thread's state, leaving the
// cached copy in place. Simulates TTL eviction so the cache-fallback read
// path can be exercised.
func (m *MemoryStore) EvictState(cfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, ScopeFrom(cfg))
}

// PutMessages implements Store.
func (m *MemoryStore) PutMessages(_ context.Context, cfg config.Config, msgs []state.Message, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	for _, msg := range msgs {
		if metadata != nil && msg.Metadata == nil {
			msg.Metadata = metadata
		}
		m.messages[scope] = append(m.messages[scope], msg.Clone())
	}
	m.touchThread(scope)
	return nil
}

// GetMessage implements Store.
func (m *MemoryStore) GetMessage(_ context.Context, cfg config.Config, messageID string) (*state.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	for _, msg := range m.messages[ScopeFrom(cfg)] {
		if msg.MessageID == messageID {
			found := msg.Clone()
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// ListMessages implements Store.
func (m *MemoryStore) ListMessages(_ context.Context, cfg config.Config, search string, offset, limit int) ([]state.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var matched []state.Message
	for _, msg := range m.messages[ScopeFrom(cfg)] {
		if search != "" && !strings.Contains(msg.Text(), search) {
			continue
		}
		matched = append(matched, msg.Clone())
	}

	lo, hi := paginate(len(matched), offset, limit)
	return matched[lo:hi], nil
}

// DeleteMessage implements Store. Deleting a nonexistent message is a no-op.
func (m *MemoryStore) DeleteMessage(_ context.Context, cfg config.Config, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	msgs := m.messages[scope]
	for i, msg := range msgs {
		if msg.MessageID == messageID {
			m.messages[scope] = append(msgs[:i:i], msgs[i+1:]...)
			break
		}
	}
	return nil
}

// GetThread implements Store.
func (m *MemoryStore) GetThread(_ context.Context, cfg config.Config) (*state.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	th, ok := m.threads[ScopeFrom(cfg)]
	if !ok {
		return nil, ErrNotFound
	}
	found := th.Clone()
	return &found, nil
}

// ListThreads implements Store. Threads are scoped by user id only.
func (m *MemoryStore) ListThreads(_ context.Context, cfg config.Config, search string, offset, limit int) ([]state.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	userID := cfg.String(KeyUserID, "")
	var matched []state.Thread
	for scope, th := range m.threads {
		if scope.UserID != userID {
			continue
		}
		if search != "" && !strings.Contains(th.Name, search) {
			continue
		}
		matched = append(matched, th.Clone())
	}

	// Newest first; thread id as tiebreaker for a stable order.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ThreadID > matched[j].ThreadID
	})

	lo, hi := paginate(len(matched), offset, limit)
	return matched[lo:hi], nil
}

// CleanThread implements Store. Removes state, cache, messages, and
// metadata together; cleaning an unseen thread is a no-op.
func (m *MemoryStore) CleanThread(_ context.Context, cfg config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	delete(m.states, scope)
	delete(m.cache, scope)
	delete(m.messages, scope)
	delete(m.threads, scope)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.states = nil
	m.cache = nil
	m.messages = nil
	m.threads = nil
	return nil
}

// Len returns the number of threads with persisted state.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.states)
}

// touchThread creates the thread record on first write or bumps its
// updated_at. Caller must hold the write lock.
func (m *MemoryStore) touchThread(scope Scope) {
	if scope.ThreadID == "" {
		return
	}
	if th, ok := m.threads[scope]; ok {
		th.UpdatedAt = time.Now().UTC()
		return
	}
	m.threads[scope] = &state.Thread{
		ThreadID:  scope.ThreadID,
		UserID:    scope.UserID,
		UpdatedAt: time.Now().UTC(),
	}
}

// paginate clamps an offset/limit window to [0, n].
// limit <= 0 means no limit.
func paginate(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
