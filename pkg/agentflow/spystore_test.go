package agentflow

import (
	"context"
	"errors"
	"sync"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/checkpoint"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/config"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// spyStore wraps a MemoryStore, recording every call's name and config
// so tests can assert scoping and write suppression. failOn forces an
// error from the named method.
type spyStore struct {
	inner *checkpoint.MemoryStore

	mu     sync.Mutex
	calls  []spyCall
	failOn string
}

type spyCall struct {
	method string
	cfg    config.Config
}

var errSpyFailure = errors.New("backend unavailable: connection refused by 10.0.0.5:5432")

func newSpyStore() *spyStore {
	return &spyStore{inner: checkpoint.NewMemoryStore()}
}

func (s *spyStore) record(method string, cfg config.Config) error {
	s.mu.Lock()
	s.calls = append(s.calls, spyCall{method: method, cfg: cfg})
	fail := s.failOn == method
	s.mu.Unlock()
	if fail {
		return errSpyFailure
	}
	return nil
}

func (s *spyStore) callsTo(method string) []spyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []spyCall
	for _, c := range s.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *spyStore) allCalls() []spyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spyCall(nil), s.calls...)
}

func (s *spyStore) GetState(ctx context.Context, cfg config.Config) (*state.AgentState, error) {
	if err := s.record("GetState", cfg); err != nil {
		return nil, err
	}
	return s.inner.GetState(ctx, cfg)
}

func (s *spyStore) GetStateCache(ctx context.Context, cfg config.Config) (*state.AgentState, error) {
	if err := s.record("GetStateCache", cfg); err != nil {
		return nil, err
	}
	return s.inner.GetStateCache(ctx, cfg)
}

func (s *spyStore) PutState(ctx context.Context, cfg config.Config, st *state.AgentState) (*state.AgentState, error) {
	if err := s.record("PutState", cfg); err != nil {
		return nil, err
	}
	return s.inner.PutState(ctx, cfg, st)
}

func (s *spyStore) ClearState(ctx context.Context, cfg config.Config) (bool, error) {
	if err := s.record("ClearState", cfg); err != nil {
		return false, err
	}
	return s.inner.ClearState(ctx, cfg)
}

func (s *spyStore) PutMessages(ctx context.Context, cfg config.Config, msgs []state.Message, metadata map[string]any) error {
	if err := s.record("PutMessages", cfg); err != nil {
		return err
	}
	return s.inner.PutMessages(ctx, cfg, msgs, metadata)
}

func (s *spyStore) GetMessage(ctx context.Context, cfg config.Config, messageID string) (*state.Message, error) {
	if err := s.record("GetMessage", cfg); err != nil {
		return nil, err
	}
	return s.inner.GetMessage(ctx, cfg, messageID)
}

func (s *spyStore) ListMessages(ctx context.Context, cfg config.Config, search string, offset, limit int) ([]state.Message, error) {
	if err := s.record("ListMessages", cfg); err != nil {
		return nil, err
	}
	return s.inner.ListMessages(ctx, cfg, search, offset, limit)
}

func (s *spyStore) DeleteMessage(ctx context.Context, cfg config.Config, messageID string) error {
	if err := s.record("DeleteMessage", cfg); err != nil {
		return err
	}
	return s.inner.DeleteMessage(ctx, cfg, messageID)
}

func (s *spyStore) GetThread(ctx context.Context, cfg config.Config) (*state.Thread, error) {
	if err := s.record("GetThread", cfg); err != nil {
		return nil, err
	}
	return s.inner.GetThread(ctx, cfg)
}

func (s *spyStore) ListThreads(ctx context.Context, cfg config.Config, search string, offset, limit int) ([]state.Thread, error) {
	if err := s.record("ListThreads", cfg); err != nil {
		return nil, err
	}
	return s.inner.ListThreads(ctx, cfg, search, offset, limit)
}

func (s *spyStore) CleanThread(ctx context.Context, cfg config.Config) error {
	if err := s.record("CleanThread", cfg); err != nil {
		return err
	}
	return s.inner.CleanThread(ctx, cfg)
}

func (s *spyStore) Close() error {
	return s.inner.Close()
}

var _ checkpoint.Store = (*spyStore)(nil)
