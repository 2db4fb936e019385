package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorInterface(t *testing.T) {
	var _ error = &Error{}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			"with cause",
			&Error{Kind: ErrorKindModelInvocation, Message: "chat completion failed", Err: errors.New("dial tcp: refused")},
			"model_invocation: chat completion failed: dial tcp: refused",
		},
		{
			"without cause",
			NewPermissionDeniedError("list_dir"),
			"permission_denied: Tool call 'list_dir' denied by user.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorFatal(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name  string
		err   *Error
		fatal bool
	}{
		{"tool execution", NewToolExecutionError("echo", cause), false},
		{"permission denied", NewPermissionDeniedError("echo"), false},
		{"model invocation", NewModelInvocationError("request failed", cause), true},
		{"connection setup", NewConnectionSetupError("connect failed", cause), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Fatal(); got != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("turn failed: %w", NewModelInvocationError("request failed", cause))

	var apiErr *Error
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("expected errors.As to find *Error")
	}
	if apiErr.Kind != ErrorKindModelInvocation {
		t.Errorf("Kind = %q, want %q", apiErr.Kind, ErrorKindModelInvocation)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}
