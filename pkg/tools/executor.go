package tools

import (
	"context"
	"fmt"

	"github.com/rhuss/mcpchat/pkg/api"
)

// ToolExecutor is a connected tool server.
type ToolExecutor interface {
	// Tools returns the tool catalog. Implementations cache the catalog
	// after the first successful call.
	Tools(ctx context.Context) ([]api.ToolDescriptor, error)

	// Execute runs the call and returns the result. Tool-level failures
	// (bad arguments, tool-reported errors, transport errors) are returned
	// as a ToolResult with IsError set, not as an error.
	Execute(ctx context.Context, call api.ToolCall) (*ToolResult, error)

	// Close releases the connection to the tool server.
	Close() error
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	// CallID matches the originating ToolCall.ID.
	CallID string

	// Output is the tool output content (text).
	Output string

	// IsError indicates that the output is an error message.
	IsError bool
}

// Message converts the result into a tool history message.
func (r *ToolResult) Message() api.Message {
	return api.NewToolMessage(r.CallID, r.Output, r.IsError)
}

// ErrorResult builds an error-status result for callID.
func ErrorResult(callID, format string, args ...any) *ToolResult {
	return &ToolResult{
		CallID:  callID,
		Output:  fmt.Sprintf(format, args...),
		IsError: true,
	}
}
