package tools

import (
	"context"
	"testing"

	"github.com/rhuss/mcpchat/pkg/api"
)

// mockExecutor is a test executor backed by a fixed catalog.
type mockExecutor struct {
	tools  []api.ToolDescriptor
	execFn func(context.Context, api.ToolCall) (*ToolResult, error)
}

func (m *mockExecutor) Tools(context.Context) ([]api.ToolDescriptor, error) { return m.tools, nil }
func (m *mockExecutor) Execute(ctx context.Context, call api.ToolCall) (*ToolResult, error) {
	return m.execFn(ctx, call)
}
func (m *mockExecutor) Close() error { return nil }

var _ ToolExecutor = (*mockExecutor)(nil)

func TestToolExecutor_MockSatisfiesInterface(t *testing.T) {
	exec := &mockExecutor{
		tools: []api.ToolDescriptor{{Name: "list_dir"}},
		execFn: func(_ context.Context, call api.ToolCall) (*ToolResult, error) {
			return &ToolResult{CallID: call.ID, Output: "result"}, nil
		},
	}

	descs, err := exec.Tools(context.Background())
	if err != nil || len(descs) != 1 {
		t.Fatalf("Tools() = %v, %v", descs, err)
	}

	result, err := exec.Execute(context.Background(), api.ToolCall{ID: "c1", Name: "list_dir", Arguments: "{}"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.CallID != "c1" {
		t.Errorf("CallID = %q, want %q", result.CallID, "c1")
	}
	if result.Output != "result" {
		t.Errorf("Output = %q, want %q", result.Output, "result")
	}
}

func TestToolResult_Message(t *testing.T) {
	tests := []struct {
		name       string
		result     ToolResult
		wantStatus api.ToolStatus
	}{
		{"success", ToolResult{CallID: "c1", Output: "ok"}, api.ToolStatusSuccess},
		{"error", ToolResult{CallID: "c2", Output: "connection reset", IsError: true}, api.ToolStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.result.Message()
			if msg.Role != api.RoleTool {
				t.Errorf("Role = %q, want tool", msg.Role)
			}
			if msg.CallID != tt.result.CallID {
				t.Errorf("CallID = %q, want %q", msg.CallID, tt.result.CallID)
			}
			if msg.Content != tt.result.Output {
				t.Errorf("Content = %q, want %q", msg.Content, tt.result.Output)
			}
			if msg.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", msg.Status, tt.wantStatus)
			}
		})
	}
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult("call_1", "tool %q failed: %s", "list_dir", "boom")
	if !r.IsError {
		t.Error("expected IsError")
	}
	if r.Output != `tool "list_dir" failed: boom` {
		t.Errorf("Output = %q", r.Output)
	}
}
