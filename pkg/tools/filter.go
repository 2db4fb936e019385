package tools

import "github.com/rhuss/mcpchat/pkg/api"

// FilterResult holds the outcome of filtering tool calls against allowed_tools.
type FilterResult struct {
	// Allowed contains tool calls that passed the filter.
	Allowed []api.ToolCall

	// Rejected contains tool calls that were not in the allowed list,
	// paired with error results to feed back to the model.
	Rejected []ToolResult
}

// FilterAllowedTools checks each tool call against the allowed list.
// If allowedTools is empty or nil, all tool calls are allowed.
func FilterAllowedTools(calls []api.ToolCall, allowedTools []string) FilterResult {
	if len(allowedTools) == 0 {
		return FilterResult{Allowed: calls}
	}

	allowed := allowedSet(allowedTools)

	var result FilterResult
	for _, call := range calls {
		if allowed[call.Name] {
			result.Allowed = append(result.Allowed, call)
		} else {
			result.Rejected = append(result.Rejected, ToolResult{
				CallID:  call.ID,
				Output:  "tool " + call.Name + " is not in the allowed_tools list",
				IsError: true,
			})
		}
	}

	return result
}

// FilterDescriptors returns the descriptors whose names are in
// allowedTools, preserving catalog order. An empty list keeps everything.
func FilterDescriptors(descs []api.ToolDescriptor, allowedTools []string) []api.ToolDescriptor {
	if len(allowedTools) == 0 {
		return descs
	}

	allowed := allowedSet(allowedTools)
	out := make([]api.ToolDescriptor, 0, len(descs))
	for _, d := range descs {
		if allowed[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

func allowedSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, name := range names {
		m[name] = true
	}
	return m
}
