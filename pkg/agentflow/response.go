package agentflow

import (
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// Result is the envelope every service operation returns: a success flag
// and a human-readable message. Absence of data (unseen thread, unknown
// message) is a successful empty result, not a failure.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StateResult carries a thread's state, when one exists.
type StateResult struct {
	Result
	State *state.AgentState `json:"state,omitempty"`
}

// MessageResult carries a single message, when one exists.
type MessageResult struct {
	Result
	MessageData *state.Message `json:"message_data,omitempty"`
}

// MessagesResult carries a page of a thread's messages.
type MessagesResult struct {
	Result
	Messages []state.Message `json:"messages"`
	Total    int             `json:"total"`
}

// ThreadResult carries a thread's metadata, when the thread exists.
type ThreadResult struct {
	Result
	Thread *state.Thread `json:"thread,omitempty"`
}

// ThreadsResult carries a page of a user's threads.
type ThreadsResult struct {
	Result
	Threads []state.Thread `json:"threads"`
	Total   int            `json:"total"`
}

// RepairResult carries the outcome of a thread repair.
type RepairResult struct {
	Result
	RemovedCount int `json:"removed_count"`
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}
