package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation and lookup failures.
var (
	ErrInvalidProfile       = errors.New("invalid chunk profile")
	ErrProfileNotFound      = errors.New("chunk profile not found")
	ErrNoActiveProfile      = errors.New("no active chunk profile")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInvalidSection       = errors.New("invalid section")
	ErrInvalidEvalItem      = errors.New("invalid evaluation item")
	ErrEmptyQuestion        = errors.New("question is empty")
	ErrChunkSizeNotPositive = errors.New("chunk size must be positive")
	ErrNegativeOverlap      = errors.New("chunk overlap must not be negative")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
