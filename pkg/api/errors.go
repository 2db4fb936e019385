package api

import "fmt"

// ErrorKind classifies failures of a chat session.
type ErrorKind string

const (
	// ErrorKindToolExecution is a failed tool call. Recovered and fed back
	// to the model as an error-status tool message.
	ErrorKindToolExecution ErrorKind = "tool_execution"

	// ErrorKindPermissionDenied is a tool call the user refused. Recovered
	// like a tool failure.
	ErrorKindPermissionDenied ErrorKind = "permission_denied"

	// ErrorKindModelInvocation is a failed chat model request. Fatal.
	ErrorKindModelInvocation ErrorKind = "model_invocation"

	// ErrorKindConnectionSetup is a failure to reach the tool server
	// before the session starts. Fatal.
	ErrorKindConnectionSetup ErrorKind = "connection_setup"
)

// Error is a classified session error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must end the session.
func (e *Error) Fatal() bool {
	return e.Kind == ErrorKindModelInvocation || e.Kind == ErrorKindConnectionSetup
}

// NewToolExecutionError creates an error for a failed tool call.
func NewToolExecutionError(tool string, err error) *Error {
	return &Error{
		Kind:    ErrorKindToolExecution,
		Message: fmt.Sprintf("tool %q failed", tool),
		Err:     err,
	}
}

// NewPermissionDeniedError creates an error for a tool call the user denied.
func NewPermissionDeniedError(tool string) *Error {
	return &Error{
		Kind:    ErrorKindPermissionDenied,
		Message: fmt.Sprintf("Tool call '%s' denied by user.", tool),
	}
}

// NewModelInvocationError creates an error for a failed model request.
func NewModelInvocationError(message string, err error) *Error {
	return &Error{
		Kind:    ErrorKindModelInvocation,
		Message: message,
		Err:     err,
	}
}

// NewConnectionSetupError creates an error for a failed tool server connection.
func NewConnectionSetupError(message string, err error) *Error {
	return &Error{
		Kind:    ErrorKindConnectionSetup,
		Message: message,
		Err:     err,
	}
}
