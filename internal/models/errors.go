package models

import (
	"errors"
	"strings"
)

// Custom errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateKey       = errors.New("duplicate key violation")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotRunning         = errors.New("backtest is no longer running")
)

// ValidationError carries the flattened list of field messages produced while
// decoding or validating a request.
type ValidationError struct {
	Messages []string
}

// NewValidationError builds a ValidationError from one or more messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Messages, "; ")
}
