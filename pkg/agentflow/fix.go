package agentflow

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/checkpoint"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/errors"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/observability"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// FixThread repairs a thread whose run was interrupted mid tool
// execution, leaving assistant messages with tool calls that never
// resolved. Those messages are removed from the persisted context so
// the next run doesn't replay a broken tool exchange.
//
// Unlike the read operations, repairing a thread with no persisted
// state is a failure: there is nothing to inspect, and reporting
// success would mask a wrong thread id. A thread whose context holds
// no corrupt messages is left untouched; no write is issued.
//
// The repaired state is written back through the store directly,
// bypassing merge-on-write. Repair is a full replacement by intent;
// merging would resurrect the messages just removed.
func (s *Service) FixThread(ctx context.Context, threadID string, user, extra map[string]any) RepairResult {
	if err := s.ready(); err != nil {
		return RepairResult{Result: s.failure("fix_thread", err)}
	}
	if threadID == "" {
		return RepairResult{Result: s.failure("fix_thread", errRequireThreadID)}
	}

	cfg := map[string]any{checkpoint.KeyThreadID: threadID}
	for k, v := range extra {
		cfg[k] = v
	}
	scoped := s.scoped(cfg, user)

	ctx, finish := s.begin(ctx, "fix_thread", threadID)

	st, err := s.store.GetState(ctx, scoped)
	if stderrors.Is(err, checkpoint.ErrNotFound) {
		verr := &errors.ValidationError{Field: "thread_id",
			Message: "no state found for thread " + threadID}
		finish(verr)
		return RepairResult{Result: s.failure("fix_thread", verr)}
	}
	if err != nil {
		perr := &errors.PersistenceError{Op: "fix_thread", Err: err}
		finish(perr)
		return RepairResult{Result: s.failure("fix_thread", perr)}
	}

	repaired, removed := repairContext(st)
	observability.LogRepair(s.logger, threadID, removed)
	s.metrics.RecordRepair(ctx, removed)

	if removed == 0 {
		finish(nil)
		return RepairResult{Result: success("no messages with empty tool calls found")}
	}

	if _, err := s.store.PutState(ctx, scoped, repaired); err != nil {
		perr := &errors.PersistenceError{Op: "fix_thread", Err: err}
		finish(perr)
		return RepairResult{Result: s.failure("fix_thread", perr)}
	}

	finish(nil)
	return RepairResult{
		Result:       success(fmt.Sprintf("successfully removed %d message(s) with empty tool calls", removed)),
		RemovedCount: removed,
	}
}

// repairContext returns a copy of the state with corrupt messages
// dropped from the context, preserving the order of the survivors,
// and the number removed. The input state is not mutated.
func repairContext(st *state.AgentState) (*state.AgentState, int) {
	out := st.Clone()
	kept := out.Context[:0]
	removed := 0
	for _, msg := range out.Context {
		if msg.Corrupt() {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	out.Context = kept
	return out, removed
}
