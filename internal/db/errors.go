package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrNotFound        = errors.New("db: not found")
	ErrConflict        = errors.New("db: revision conflict")
	ErrDatabaseMissing = errors.New("db: database does not exist")
	ErrDatabaseExists  = errors.New("db: database already exists")
)

// Op constants name backend operations for error context.
const (
	OpPing      = "PING"
	OpFetchPage = "FETCH_PAGE"
	OpGet       = "GET"
	OpPut       = "PUT"
	OpDelete    = "DELETE"
	OpCreateDB  = "CREATE_DB"
	OpDecode    = "DECODE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
