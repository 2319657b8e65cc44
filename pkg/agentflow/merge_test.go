package agentflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

func TestMergeStates_FirstWritePassesThrough(t *testing.T) {
	incoming := &state.AgentState{
		ExecutionMeta:  map[string]any{"step": 1},
		Context:        []state.Message{state.NewMessage(state.RoleUser, "hello")},
		ContextSummary: "greeting",
	}

	merged := MergeStates(nil, incoming)

	assert.Same(t, incoming, merged)
}

func TestMergeStates_NilIncomingKeepsOld(t *testing.T) {
	old := &state.AgentState{ContextSummary: "persisted"}

	merged := MergeStates(old, nil)

	assert.Same(t, old, merged)
}

func TestMergeStates_ExecutionMetaIsServerAuthoritative(t *testing.T) {
	old := &state.AgentState{
		ExecutionMeta: map[string]any{"current_node": "review", "step": 7},
	}
	incoming := &state.AgentState{
		ExecutionMeta: map[string]any{"current_node": "hacked", "step": 0},
	}

	merged := MergeStates(old, incoming)

	assert.Equal(t, "review", merged.ExecutionMeta["current_node"])
	assert.Equal(t, 7, merged.ExecutionMeta["step"])
}

func TestMergeStates_EmptyContextPreservesHistory(t *testing.T) {
	history := []state.Message{
		state.NewMessage(state.RoleUser, "q"),
		state.NewMessage(state.RoleAssistant, "a"),
	}
	old := &state.AgentState{Context: history}
	incoming := &state.AgentState{}

	merged := MergeStates(old, incoming)

	require.Len(t, merged.Context, 2)
	assert.Equal(t, history[0].MessageID, merged.Context[0].MessageID)
	assert.Equal(t, history[1].MessageID, merged.Context[1].MessageID)
}

func TestMergeStates_ProvidedContextReplacesHistory(t *testing.T) {
	old := &state.AgentState{
		Context: []state.Message{
			state.NewMessage(state.RoleUser, "old 1"),
			state.NewMessage(state.RoleAssistant, "old 2"),
		},
	}
	replacement := state.NewMessage(state.RoleUser, "new")
	incoming := &state.AgentState{Context: []state.Message{replacement}}

	merged := MergeStates(old, incoming)

	require.Len(t, merged.Context, 1)
	assert.Equal(t, replacement.MessageID, merged.Context[0].MessageID)
}

func TestMergeStates_SummaryPreservedWhenEmpty(t *testing.T) {
	old := &state.AgentState{ContextSummary: "ten turns about routing"}

	merged := MergeStates(old, &state.AgentState{})
	assert.Equal(t, "ten turns about routing", merged.ContextSummary)

	merged = MergeStates(old, &state.AgentState{ContextSummary: "fresh"})
	assert.Equal(t, "fresh", merged.ContextSummary)
}

func TestMergeStates_ExtensionDeepMerge(t *testing.T) {
	old := &state.AgentState{
		Extra: map[string]any{
			"settings": map[string]any{
				"model": "small",
				"tools": map[string]any{"search": true},
			},
			"score": 1,
		},
	}
	incoming := &state.AgentState{
		Extra: map[string]any{
			"settings": map[string]any{
				"model": "large",
			},
			"note": "updated",
		},
	}

	merged := MergeStates(old, incoming)

	settings, ok := merged.Extra["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "large", settings["model"])
	assert.Equal(t, map[string]any{"search": true}, settings["tools"])
	assert.Equal(t, 1, merged.Extra["score"])
	assert.Equal(t, "updated", merged.Extra["note"])
}

func TestMergeStates_ContextListsConcatenate(t *testing.T) {
	old := &state.AgentState{
		Extra: map[string]any{
			"context": []any{"a", "b"},
			"other":   []any{"x"},
		},
	}
	incoming := &state.AgentState{
		Extra: map[string]any{
			"context": []any{"c"},
			"other":   []any{"y"},
		},
	}

	merged := MergeStates(old, incoming)

	assert.Equal(t, []any{"a", "b", "c"}, merged.Extra["context"])
	assert.Equal(t, []any{"y"}, merged.Extra["other"])
}

func TestMergeStates_NestedContextListsConcatenate(t *testing.T) {
	old := &state.AgentState{
		Extra: map[string]any{
			"memory": map[string]any{"context": []any{1.0}},
		},
	}
	incoming := &state.AgentState{
		Extra: map[string]any{
			"memory": map[string]any{"context": []any{2.0}},
		},
	}

	merged := MergeStates(old, incoming)

	memory, ok := merged.Extra["memory"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{1.0, 2.0}, memory["context"])
}

func TestMergeStates_TypeMismatchNewWins(t *testing.T) {
	old := &state.AgentState{
		Extra: map[string]any{
			"context":  "not a list",
			"settings": []any{"was a list"},
		},
	}
	incoming := &state.AgentState{
		Extra: map[string]any{
			"context":  []any{"now a list"},
			"settings": map[string]any{"now": "a map"},
		},
	}

	merged := MergeStates(old, incoming)

	assert.Equal(t, []any{"now a list"}, merged.Extra["context"])
	assert.Equal(t, map[string]any{"now": "a map"}, merged.Extra["settings"])
}

func TestMergeStates_InputsNotMutated(t *testing.T) {
	old := &state.AgentState{
		Extra: map[string]any{
			"context": []any{"a"},
			"nested":  map[string]any{"k": "old"},
		},
	}
	incoming := &state.AgentState{
		Extra: map[string]any{
			"context": []any{"b"},
			"nested":  map[string]any{"k": "new"},
		},
	}

	_ = MergeStates(old, incoming)

	assert.Equal(t, []any{"a"}, old.Extra["context"])
	assert.Equal(t, map[string]any{"k": "old"}, old.Extra["nested"])
	assert.Equal(t, []any{"b"}, incoming.Extra["context"])
	assert.Equal(t, map[string]any{"k": "new"}, incoming.Extra["nested"])
}
