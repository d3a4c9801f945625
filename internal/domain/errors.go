package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing record or collection.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a revision mismatch on write.
	ErrConflict = errors.New("revision conflict")
	// ErrOverLimit signals that a search accumulated more records than allowed.
	ErrOverLimit = errors.New("search over limit")
	// ErrInvalidQuery signals a malformed query or filter.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRetryExhausted signals that a conflicting write kept conflicting.
	ErrRetryExhausted = errors.New("retry exhausted")
	// ErrNotImplemented signals an operation the backend does not support.
	ErrNotImplemented = errors.New("not implemented")
)

// NotFoundError names the missing record. Unwraps to ErrNotFound.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("'%s' is not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a not-found error for the given record id.
func NewNotFound(id string) error {
	return &NotFoundError{ID: id}
}

// OverLimitError carries the configured ceiling that was breached.
type OverLimitError struct {
	Limit       int
	Accumulated int
}

func (e *OverLimitError) Error() string {
	return fmt.Sprintf("%s: accumulated %d records, limit is %d", ErrOverLimit.Error(), e.Accumulated, e.Limit)
}

func (e *OverLimitError) Unwrap() error { return ErrOverLimit }

// ValidationError describes why a query was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidQuery.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", ErrInvalidQuery.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidQuery }

// NewValidation creates a ValidationError for a field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
