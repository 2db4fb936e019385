package provider

import "fmt"

// BackendError is a failed request to a chat model backend.
type BackendError struct {
	// StatusCode is the HTTP status returned by the backend, or 0 when the
	// request never produced a response (network failure, timeout).
	StatusCode int

	// Message is the backend's error message when one could be extracted.
	Message string

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend connection error: %s", e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying transport error.
func (e *BackendError) Unwrap() error {
	return e.Err
}
