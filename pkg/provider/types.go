package provider

import (
	"encoding/json"

	"github.com/rhuss/mcpchat/pkg/api"
)

// ProviderRequest is the backend-facing request. It contains only the
// information the provider needs.
type ProviderRequest struct {
	Model    string            `json:"model"`
	Messages []ProviderMessage `json:"messages"`
	Tools    []ProviderTool    `json:"tools,omitempty"`
}

// ProviderMessage represents a message in the provider's conversation format.
type ProviderMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content"`
	ToolCalls  []ProviderToolCall `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

// ProviderToolCall represents a tool call entry in an assistant message.
type ProviderToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function ProviderFunctionCall `json:"function"`
}

// ProviderFunctionCall holds the function name and arguments for a tool call.
type ProviderFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ProviderTool represents a tool definition in provider format.
type ProviderTool struct {
	Type     string              `json:"type"`
	Function ProviderFunctionDef `json:"function"`
}

// ProviderFunctionDef holds a function definition for tool use.
type ProviderFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ProviderResponse is the backend's complete response, reduced to the
// first choice.
type ProviderResponse struct {
	Content      string         `json:"content"`
	ToolCalls    []api.ToolCall `json:"tool_calls,omitempty"`
	Usage        Usage          `json:"usage"`
	Model        string         `json:"model"`
	FinishReason string         `json:"finish_reason"`
}

// AssistantMessage converts the response into a history message.
func (r *ProviderResponse) AssistantMessage() api.Message {
	return api.NewAssistantMessage(r.Content, r.ToolCalls)
}

// Usage holds token counts reported by the backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ModelInfo holds information about a model served by the provider.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}
