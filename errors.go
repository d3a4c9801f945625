package backsync

import "github.com/kailas-cloud/backsync/internal/domain"

// Sentinel errors, usable with errors.Is.
var (
	ErrNotFound       = domain.ErrNotFound
	ErrConflict       = domain.ErrConflict
	ErrOverLimit      = domain.ErrOverLimit
	ErrInvalidQuery   = domain.ErrInvalidQuery
	ErrRetryExhausted = domain.ErrRetryExhausted
	ErrNotImplemented = domain.ErrNotImplemented
)

// Typed errors, usable with errors.As.
type (
	// NotFoundError names the missing document.
	NotFoundError = domain.NotFoundError
	// OverLimitError carries the breached ceiling and the accumulated count.
	OverLimitError = domain.OverLimitError
	// ValidationError names the offending query field.
	ValidationError = domain.ValidationError
)
