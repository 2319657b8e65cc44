package agentflow

import (
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// extKeyContext is the one extension-field key with special merge
// semantics: lists under it are concatenated instead of replaced.
const extKeyContext = "context"

// MergeStates reconciles a caller-supplied candidate state against the
// previously persisted state and returns the state to persist.
//
// Rules:
//   - nil old: the candidate is the first write and passes through as-is.
//   - execution_meta always comes from old. It is server-authoritative
//     and nothing in the candidate can override it.
//   - An empty candidate context preserves the persisted history; a
//     non-empty one replaces it wholesale. There is no per-message
//     reconciliation at this layer.
//   - An empty candidate context_summary preserves the persisted one.
//   - Extension fields merge last-writer-wins, recursively for nested
//     maps, except that lists under a key named "context" concatenate.
//
// MergeStates is pure: neither input is mutated.
func MergeStates(old, incoming *state.AgentState) *state.AgentState {
	if incoming == nil {
		return old
	}
	if old == nil {
		return incoming
	}

	merged := &state.AgentState{
		ExecutionMeta:  old.ExecutionMeta,
		Context:        incoming.Context,
		ContextSummary: incoming.ContextSummary,
		Extra:          mergeExtensions(old.Extra, incoming.Extra),
	}
	if len(incoming.Context) == 0 {
		merged.Context = old.Context
	}
	if incoming.ContextSummary == "" {
		merged.ContextSummary = old.ContextSummary
	}
	return merged
}

// mergeExtensions merges extension-field maps recursively. At each key:
// two nested maps merge recursively, two lists under a "context" key
// concatenate (old first), anything else the new value wins outright.
func mergeExtensions(base, updates map[string]any) map[string]any {
	if len(base) == 0 && len(updates) == 0 {
		if updates != nil {
			return updates
		}
		return base
	}

	out := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		switch newVal := v.(type) {
		case map[string]any:
			if oldMap, ok := existing.(map[string]any); ok {
				out[k] = mergeExtensions(oldMap, newVal)
				continue
			}
		case []any:
			if k == extKeyContext {
				if oldList, ok := existing.([]any); ok {
					joined := make([]any, 0, len(oldList)+len(newVal))
					joined = append(joined, oldList...)
					joined = append(joined, newVal...)
					out[k] = joined
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}
