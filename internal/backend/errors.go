package backend

import (
	"errors"
	"fmt"
)

const defaultFailureMessage = "API request failed"

var (
	// ErrUnexpectedShape means a 2xx response did not carry the documented envelope.
	ErrUnexpectedShape = errors.New("backend: unexpected response shape")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("backend: temporarily unavailable")
)

// APIError is a failure reported by the backend, either through a non-2xx
// status or through success:false in the envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
}

func newAPIError(status int, message string) *APIError {
	if message == "" {
		message = defaultFailureMessage
	}
	return &APIError{Status: status, Message: message}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
