package api

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a message in the conversation history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSummary   Role = "summary"
)

// ToolStatus is the outcome of a single tool call as recorded in history.
type ToolStatus string

const (
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// Message is one entry of the conversation history. It is a tagged variant
// keyed by Role:
//   - user and summary messages carry only Content
//   - assistant messages may carry ToolCalls
//   - tool messages carry CallID and Status
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CallID    string     `json:"call_id,omitempty"`
	Status    ToolStatus `json:"status,omitempty"`
}

// HasToolCalls reports whether an assistant message requests tool execution.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	// ID correlates the call with its tool result message.
	ID string `json:"id"`

	// Name is the tool name as advertised by the tool server.
	Name string `json:"name"`

	// Arguments is the JSON-encoded argument object, exactly as emitted
	// by the model.
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the JSON argument object. Empty arguments decode
// to an empty map.
func (c ToolCall) ParseArguments() (map[string]any, error) {
	args := map[string]any{}
	if c.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments JSON for tool %q: %w", c.Name, err)
	}
	return args, nil
}

// ToolDescriptor describes a tool offered by the tool server.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message with optional tool calls.
func NewAssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage creates a tool result message for the given call.
func NewToolMessage(callID, content string, isError bool) Message {
	status := ToolStatusSuccess
	if isError {
		status = ToolStatusError
	}
	return Message{Role: RoleTool, Content: content, CallID: callID, Status: status}
}

// NewSummaryMessage creates the message that replaces history after compaction.
func NewSummaryMessage(content string) Message {
	return Message{Role: RoleSummary, Content: content}
}
