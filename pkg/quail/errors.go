package quail

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is matched by 401 responses
	ErrUnauthorized = errors.New("quail: unauthorized")

	// ErrNotFound is matched by 404 responses
	ErrNotFound = errors.New("quail: not found")

	// ErrConflict is matched by 409 responses
	ErrConflict = errors.New("quail: conflict")

	// ErrValidation is matched by 400 responses
	ErrValidation = errors.New("quail: validation failed")

	// ErrNotAuthenticated is returned when a protected call is made without tokens
	ErrNotAuthenticated = errors.New("quail: not authenticated")
)

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return fmt.Sprintf("quail: %d %s", e.StatusCode, msg)
}

// Unwrap maps the status code onto the package sentinels
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest:
		return ErrValidation
	default:
		return nil
	}
}
