package agentflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/checkpoint"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/config"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/errors"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/observability"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// Service orchestrates thread state, message, and thread-metadata
// operations against a checkpoint.Store, applying merge-on-write for
// state and tenant scoping for every call.
//
// The service holds no cross-call locks and no mutable shared state
// beyond the store handle, which must itself be safe for concurrent
// use. Two concurrent PutState calls on the same thread race
// read-modify-write; the later write wins and may discard the other
// caller's merge (see package documentation).
type Service struct {
	store        checkpoint.Store
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	redactErrors bool
}

// NewService creates a checkpoint service backed by the given store.
// The store is passed explicitly rather than discovered globally so
// test doubles and per-tenant routing stay straightforward.
func NewService(store checkpoint.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListQuery bounds a paginated list operation.
// An empty Search matches everything; Limit <= 0 means no limit.
type ListQuery struct {
	Search string
	Offset int
	Limit  int
}

// GetState returns the persisted state for cfg's thread.
// An unseen thread yields a successful empty result, not a failure.
func (s *Service) GetState(ctx context.Context, cfg, user map[string]any) StateResult {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return StateResult{Result: s.failure("get_state", err)}
	}
	if threadID == "" {
		return StateResult{Result: s.failure("get_state", errRequireThreadID)}
	}

	ctx, finish := s.begin(ctx, "get_state", threadID)

	st, err := s.store.GetState(ctx, scoped)
	if stderrors.Is(err, checkpoint.ErrNotFound) {
		finish(nil)
		return StateResult{Result: success("no state found for the given configuration")}
	}
	if err != nil {
		perr := &errors.PersistenceError{Op: "get_state", Err: err}
		finish(perr)
		return StateResult{Result: s.failure("get_state", perr)}
	}

	finish(nil)
	return StateResult{Result: success("state retrieved successfully"), State: st}
}

// PutState reconciles the candidate state against the persisted one and
// stores the result. The read side falls back to the secondary cache so
// a write landing just after primary eviction still merges against the
// last known state rather than clobbering history.
func (s *Service) PutState(ctx context.Context, cfg, user map[string]any, candidate *state.AgentState) StateResult {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return StateResult{Result: s.failure("put_state", err)}
	}
	if threadID == "" {
		return StateResult{Result: s.failure("put_state", errRequireThreadID)}
	}
	if candidate == nil {
		return StateResult{Result: s.failure("put_state",
			&errors.ValidationError{Field: "state", Message: "is required"})}
	}

	ctx, finish := s.begin(ctx, "put_state", threadID)

	old, err := s.store.GetState(ctx, scoped)
	if stderrors.Is(err, checkpoint.ErrNotFound) {
		old, err = s.store.GetStateCache(ctx, scoped)
		if err == nil {
			s.spans.AddSpanEvent(ctx, "state_cache_fallback")
		}
		if stderrors.Is(err, checkpoint.ErrNotFound) {
			old, err = nil, nil
		}
	}
	if err != nil {
		perr := &errors.PersistenceError{Op: "put_state", Err: err}
		finish(perr)
		return StateResult{Result: s.failure("put_state", perr)}
	}

	merged := MergeStates(old, candidate)
	observability.LogStateMerged(s.logger, threadID, len(merged.Context))

	stored, err := s.store.PutState(ctx, scoped, merged)
	if err != nil {
		perr := &errors.PersistenceError{Op: "put_state", Err: err}
		finish(perr)
		return StateResult{Result: s.failure("put_state", perr)}
	}

	s.metrics.RecordStateWrite(ctx, len(merged.Context))
	finish(nil)
	return StateResult{Result: success("state stored successfully"), State: stored}
}

// ClearState deletes the thread's persisted state.
// Clearing an already-empty thread succeeds with zero effect.
func (s *Service) ClearState(ctx context.Context, cfg, user map[string]any) Result {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return s.failure("clear_state", err)
	}
	if threadID == "" {
		return s.failure("clear_state", errRequireThreadID)
	}

	ctx, finish := s.begin(ctx, "clear_state", threadID)

	if _, err := s.store.ClearState(ctx, scoped); err != nil {
		perr := &errors.PersistenceError{Op: "clear_state", Err: err}
		finish(perr)
		return s.failure("clear_state", perr)
	}

	finish(nil)
	return success("state cleared successfully")
}

// PutMessages appends messages to the thread's history.
func (s *Service) PutMessages(ctx context.Context, cfg, user map[string]any, msgs []state.Message, metadata map[string]any) Result {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return s.failure("put_messages", err)
	}
	if threadID == "" {
		return s.failure("put_messages", errRequireThreadID)
	}
	for _, msg := range msgs {
		if msg.MessageID == "" {
			return s.failure("put_messages",
				&errors.ValidationError{Field: "message_id", Message: "is required"})
		}
		if !msg.Role.Valid() {
			return s.failure("put_messages",
				&errors.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", msg.Role)})
		}
	}

	ctx, finish := s.begin(ctx, "put_messages", threadID)

	if err := s.store.PutMessages(ctx, scoped, msgs, metadata); err != nil {
		perr := &errors.PersistenceError{Op: "put_messages", Err: err}
		finish(perr)
		return s.failure("put_messages", perr)
	}

	finish(nil)
	return success(fmt.Sprintf("successfully stored %d messages", len(msgs)))
}

// GetMessage returns one message by id.
// An unknown id yields a successful empty result.
func (s *Service) GetMessage(ctx context.Context, cfg, user map[string]any, messageID string) MessageResult {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return MessageResult{Result: s.failure("get_message", err)}
	}
	if threadID == "" {
		return MessageResult{Result: s.failure("get_message", errRequireThreadID)}
	}
	if messageID == "" {
		return MessageResult{Result: s.failure("get_message",
			&errors.ValidationError{Field: "message_id", Message: "is required"})}
	}

	ctx, finish := s.begin(ctx, "get_message", threadID)

	msg, err := s.store.GetMessage(ctx, scoped, messageID)
	if stderrors.Is(err, checkpoint.ErrNotFound) {
		finish(nil)
		return MessageResult{Result: success("no message found for the given configuration")}
	}
	if err != nil {
		perr := &errors.PersistenceError{Op: "get_message", Err: err}
		finish(perr)
		return MessageResult{Result: s.failure("get_message", perr)}
	}

	finish(nil)
	return MessageResult{Result: success("message retrieved successfully"), MessageData: msg}
}

// ListMessages returns a page of the thread's messages in insertion order.
func (s *Service) ListMessages(ctx context.Context, cfg, user map[string]any, q ListQuery) MessagesResult {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return MessagesResult{Result: s.failure("list_messages", err)}
	}
	if threadID == "" {
		return MessagesResult{Result: s.failure("list_messages", errRequireThreadID)}
	}

	ctx, finish := s.begin(ctx, "list_messages", threadID)

	msgs, err := s.store.ListMessages(ctx, scoped, q.Search, q.Offset, q.Limit)
	if err != nil {
		perr := &errors.PersistenceError{Op: "list_messages", Err: err}
		finish(perr)
		return MessagesResult{Result: s.failure("list_messages", perr)}
	}

	finish(nil)
	return MessagesResult{
		Result:   success(fmt.Sprintf("retrieved %d messages", len(msgs))),
		Messages: msgs,
		Total:    len(msgs),
	}
}

// DeleteMessage removes one message by id. Unknown ids are a no-op.
func (s *Service) DeleteMessage(ctx context.Context, cfg, user map[string]any, messageID string) Result {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return s.failure("delete_message", err)
	}
	if threadID == "" {
		return s.failure("delete_message", errRequireThreadID)
	}
	if messageID == "" {
		return s.failure("delete_message",
			&errors.ValidationError{Field: "message_id", Message: "is required"})
	}

	ctx, finish := s.begin(ctx, "delete_message", threadID)

	if err := s.store.DeleteMessage(ctx, scoped, messageID); err != nil {
		perr := &errors.PersistenceError{Op: "delete_message", Err: err}
		finish(perr)
		return s.failure("delete_message", perr)
	}

	finish(nil)
	return success("message deleted successfully")
}

// GetThread returns the thread's metadata.
// An unseen thread yields a successful empty result.
func (s *Service) GetThread(ctx context.Context, cfg, user map[string]any) ThreadResult {
	scoped := s.scoped(cfg, user)
	threadID := scoped.String(checkpoint.KeyThreadID, "")
	if err := s.ready(); err != nil {
		return ThreadResult{Result: s.failure("get_thread", err)}
	}
	if threadID == "" {
		return ThreadResult{Result: s.failure("get_thread", errRequireThreadID)}
	}

	ctx, finish := s.begin(ctx, "get_thread", threadID)

	th, err := s.store.GetThread(ctx, scoped)
	if stderrors.Is(err, checkpoint.ErrNotFound) {
		finish(nil)
		return ThreadResult{Result: success("no thread found for the given configuration")}
	}
	if err != nil {
		perr := &errors.PersistenceError{Op: "get_thread", Err: err}
		finish(perr)
		return ThreadResult{Result: s.failure("get_thread", perr)}
	}

	finish(nil)
	return ThreadResult{Result: success("thread retrieved successfully"), Thread: th}
}

// ListThreads returns a page of the user's threads, newest first.
func (s *Service) ListThreads(ctx context.Context, cfg, user map[string]any, q ListQuery) ThreadsResult {
	scoped := s.scoped(cfg, user)
	if err := s.ready(); err != nil {
		return ThreadsResult{Result: s.failure("list_threads", err)}
	}

	ctx, finish := s.begin(ctx, "list_threads", "")

	threads, err := s.store.ListThreads(ctx, scoped, q.Search, q.Offset, q.Limit)
	if err != nil {
		perr := &errors.PersistenceError{Op: "list_threads", Err: err}
		finish(perr)
		return ThreadsResult{Result: s.failure("list_threads", perr)}
	}

	finish(nil)
	return ThreadsResult{
		Result:  success(fmt.Sprintf("retrieved %d threads", len(threads))),
		Threads: threads,
		Total:   len(threads),
	}
}

// DeleteThread removes the thread's state, messages, and metadata
// together. Deleting an unseen thread succeeds with zero effect.
func (s *Service) DeleteThread(ctx context.Context, cfg, user map[string]any, threadID string) Result {
	if err := s.ready(); err != nil {
		return s.failure("delete_thread", err)
	}
	if threadID == "" {
		return s.failure("delete_thread", errRequireThreadID)
	}

	scoped := s.scoped(cfg, user)
	scoped.Set(checkpoint.KeyThreadID, threadID)

	ctx, finish := s.begin(ctx, "delete_thread", threadID)

	if err := s.store.CleanThread(ctx, scoped); err != nil {
		perr := &errors.PersistenceError{Op: "delete_thread", Err: err}
		finish(perr)
		return s.failure("delete_thread", perr)
	}

	finish(nil)
	return success("thread deleted successfully")
}

var errRequireThreadID = &errors.ValidationError{Field: "thread_id", Message: "is required"}

// ready reports whether a store is wired in.
func (s *Service) ready() error {
	if s.store == nil {
		return &errors.NotConfiguredError{Component: "checkpointer store"}
	}
	return nil
}

// scoped clones the caller's config and injects the authenticated user
// and derived user id. Every store call goes through here; nothing
// reaches the persistence layer without tenant scoping.
func (s *Service) scoped(cfg, user map[string]any) config.Config {
	out := config.New(cfg).Clone()
	if user != nil {
		out.Set(checkpoint.KeyUser, user)
		out.Set(checkpoint.KeyUserID, userIDOf(user))
	}
	return out
}

// userIDOf derives the scoping user id from an identity map.
func userIDOf(user map[string]any) string {
	v, ok := user[checkpoint.KeyUserID]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// begin starts instrumentation for one operation. The returned finish
// function records the metric, closes the span, and logs the outcome.
func (s *Service) begin(ctx context.Context, op, threadID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.spans.StartOpSpan(ctx, op, threadID)
	return ctx, func(err error) {
		duration := time.Since(start)
		s.metrics.RecordOperation(ctx, op, duration, err)
		s.spans.EndSpanWithError(span, err)
		if err != nil {
			observability.LogOperationError(s.logger, op, threadID, err)
			return
		}
		observability.LogOperation(s.logger, op, threadID, duration)
	}
}

// failure converts an error into a failure result. With redaction on,
// persistence-layer error text is replaced by a generic message; the
// full error still goes to the log and span.
func (s *Service) failure(op string, err error) Result {
	msg := err.Error()
	if s.redactErrors {
		var perr *errors.PersistenceError
		if stderrors.As(err, &perr) {
			msg = "failed to " + strings.ReplaceAll(op, "_", " ")
		}
	}
	return Result{Success: false, Message: msg}
}
