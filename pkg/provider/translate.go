package provider

import (
	"github.com/rhuss/mcpchat/pkg/api"
)

// SummaryPrefix introduces a compacted history summary when it is sent to
// the model as a system message.
const SummaryPrefix = "Summary of the conversation so far: "

// FromHistory converts session history into provider messages.
//
// Mapping:
//   - user -> role "user"
//   - assistant -> role "assistant" with tool_calls
//   - tool -> role "tool" with tool_call_id
//   - summary -> role "system", content prefixed with SummaryPrefix
func FromHistory(history []api.Message) []ProviderMessage {
	msgs := make([]ProviderMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case api.RoleUser:
			msgs = append(msgs, ProviderMessage{Role: "user", Content: m.Content})
		case api.RoleAssistant:
			pm := ProviderMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				pm.ToolCalls = append(pm.ToolCalls, ProviderToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: ProviderFunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			msgs = append(msgs, pm)
		case api.RoleTool:
			msgs = append(msgs, ProviderMessage{Role: "tool", Content: m.Content, ToolCallID: m.CallID})
		case api.RoleSummary:
			msgs = append(msgs, ProviderMessage{Role: "system", Content: SummaryPrefix + m.Content})
		}
	}
	return msgs
}

// ToolsFromDescriptors converts tool server descriptors into function tools.
func ToolsFromDescriptors(descs []api.ToolDescriptor) []ProviderTool {
	if len(descs) == 0 {
		return nil
	}
	tools := make([]ProviderTool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, ProviderTool{
			Type: "function",
			Function: ProviderFunctionDef{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		})
	}
	return tools
}

// EnsureCallIDs assigns generated IDs to tool calls the backend returned
// without one, so every tool result can be correlated.
func EnsureCallIDs(calls []api.ToolCall) []api.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = api.NewCallID()
		}
	}
	return calls
}
