// Package state defines the durable data model for conversation threads:
// the checkpointed AgentState snapshot, the messages that form a thread's
// context, and thread metadata.
package state

import (
	"encoding/json"
	"time"
)

// AgentState is the checkpointed snapshot of one thread's execution.
//
// ExecutionMeta is engine-internal control-flow data (current node, step
// counters). It is authoritative only from the server side: the merge
// engine always keeps the previously persisted value, so nothing a client
// submits can overwrite it.
//
// Extra holds caller-defined extension fields. They are folded into the
// top level of the JSON object, so a state serializes as one flat mapping
// regardless of which fields are typed and which are extensions.
type AgentState struct {
	ExecutionMeta  map[string]any `json:"-"`
	Context        []Message      `json:"-"`
	ContextSummary string         `json:"-"`
	Extra          map[string]any `json:"-"`
}

// Reserved top-level keys that map to typed fields rather than Extra.
const (
	keyExecutionMeta  = "execution_meta"
	keyContext        = "context"
	keyContextSummary = "context_summary"
)

// MarshalJSON serializes the state as a single flat JSON object with
// extension fields at the top level.
func (s *AgentState) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		m[k] = v
	}
	if s.ExecutionMeta != nil {
		m[keyExecutionMeta] = s.ExecutionMeta
	}
	if len(s.Context) > 0 {
		m[keyContext] = s.Context
	}
	if s.ContextSummary != "" {
		m[keyContextSummary] = s.ContextSummary
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits a flat JSON object into the typed fields and Extra.
func (s *AgentState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = AgentState{}
	for key, val := range raw {
		switch key {
		case keyExecutionMeta:
			if err := json.Unmarshal(val, &s.ExecutionMeta); err != nil {
				return err
			}
		case keyContext:
			if err := json.Unmarshal(val, &s.Context); err != nil {
				return err
			}
		case keyContextSummary:
			if err := json.Unmarshal(val, &s.ContextSummary); err != nil {
				return err
			}
		default:
			var v any
			if err := json.Unmarshal(val, &v); err != nil {
				return err
			}
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}
			s.Extra[key] = v
		}
	}
	return nil
}

// Clone returns a deep copy of the state.
// Used by stores to keep persisted snapshots independent of caller slices.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	out := &AgentState{
		ContextSummary: s.ContextSummary,
	}
	if s.ExecutionMeta != nil {
		out.ExecutionMeta = cloneMap(s.ExecutionMeta)
	}
	if s.Context != nil {
		out.Context = make([]Message, len(s.Context))
		for i, msg := range s.Context {
			out.Context[i] = msg.Clone()
		}
	}
	if s.Extra != nil {
		out.Extra = cloneMap(s.Extra)
	}
	return out
}

// cloneMap deep-copies nested maps and slices; scalars are shared.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Thread is the metadata record for one durable conversation session.
// Threads are created implicitly on the first state or message write for
// an unseen thread id and removed by the thread clean operation.
type Thread struct {
	ThreadID  string         `json:"thread_id"`
	UserID    string         `json:"user_id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a copy of the thread with its own metadata map.
func (t Thread) Clone() Thread {
	out := t
	if t.Metadata != nil {
		out.Metadata = cloneMap(t.Metadata)
	}
	return out
}
