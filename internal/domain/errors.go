package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated means the session carries no bearer token.
	ErrUnauthenticated = errors.New("login required")
)

// ValidationError is a local input failure. It is safe to show to the user
// and never reaches the backend.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(msg string) error { return &ValidationError{Message: msg} }
