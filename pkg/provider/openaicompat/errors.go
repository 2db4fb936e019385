package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/mcpchat/pkg/provider"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into
// a BackendError. It attempts to parse the response body as a
// ChatErrorResponse to extract a descriptive message.
func MapHTTPError(resp *http.Response) *provider.BackendError {
	message := ExtractErrorMessage(resp.Body)

	if message == "" {
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			message = "invalid request to backend"
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			message = "backend authentication failed"
		case resp.StatusCode == http.StatusNotFound:
			message = "backend resource not found"
		case resp.StatusCode == http.StatusTooManyRequests:
			message = "backend rate limit exceeded"
		case resp.StatusCode >= http.StatusInternalServerError:
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		default:
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
	}

	return &provider.BackendError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// MapNetworkError converts a network-level error (connection refused, timeout,
// DNS resolution failure) into a BackendError.
func MapNetworkError(err error) *provider.BackendError {
	return &provider.BackendError{
		Message: err.Error(),
		Err:     err,
	}
}

// ExtractErrorMessage tries to parse the response body as a ChatErrorResponse
// and returns the error message if found.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
