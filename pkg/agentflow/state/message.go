package state

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// ContentBlock is one unit of message content.
// Text blocks carry Text; other block types carry structured Data.
type ContentBlock struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// TextBlock creates a plain text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ToolCall records one tool invocation made by the assistant.
// Content holds the tool's result; it stays empty until the tool
// completes, so an empty Content marks an interrupted invocation.
type ToolCall struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Args    map[string]any `json:"args,omitempty"`
	Content string         `json:"content"`
}

// Resolved reports whether the tool call received its result.
func (t ToolCall) Resolved() bool {
	return t.Content != ""
}

// Message is one conversational turn within a thread.
type Message struct {
	MessageID string         `json:"message_id"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content,omitempty"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a generated id and the given text content.
func NewMessage(role Role, text string) Message {
	return Message{
		MessageID: uuid.New().String(),
		Role:      role,
		Content:   []ContentBlock{TextBlock(text)},
		Timestamp: time.Now().UTC(),
	}
}

// Corrupt reports whether the message carries an interrupted tool
// invocation: a non-empty tool_calls list where at least one entry
// never received its result.
func (m Message) Corrupt() bool {
	if len(m.ToolCalls) == 0 {
		return false
	}
	for _, tc := range m.ToolCalls {
		if !tc.Resolved() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the message. Content blocks, tool calls,
// and metadata get their own backing storage, so mutating the original
// afterwards cannot reach the copy.
func (m Message) Clone() Message {
	out := m
	if m.Content != nil {
		out.Content = make([]ContentBlock, len(m.Content))
		for i, block := range m.Content {
			if block.Data != nil {
				block.Data = cloneMap(block.Data)
			}
			out.Content[i] = block
		}
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			if tc.Args != nil {
				tc.Args = cloneMap(tc.Args)
			}
			out.ToolCalls[i] = tc
		}
	}
	if m.Metadata != nil {
		out.Metadata = cloneMap(m.Metadata)
	}
	return out
}

// Text returns the concatenated text of all text content blocks.
func (m Message) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += block.Text
	}
	return out
}
