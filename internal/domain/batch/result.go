// Package batch describes per-item outcomes of multi-document writes.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch operation.
type Result struct {
	id     string
	rev    string
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result carrying the written revision.
func NewOK(id, rev string) Result { return Result{id: id, rev: rev, status: StatusOK} }

// NewError creates a failed batch result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Rev returns the revision written, empty for deletes and failures.
func (r Result) Rev() string { return r.rev }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Failed counts the results with StatusError.
func Failed(rs []Result) int {
	n := 0
	for _, r := range rs {
		if r.status == StatusError {
			n++
		}
	}
	return n
}
