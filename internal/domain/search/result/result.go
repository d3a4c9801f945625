// Package result shapes the output of a search: the matched records plus the
// scan bookkeeping pagination-aware callers ask for.
package result

import "github.com/kailas-cloud/backsync/internal/domain/record"

// Meta is the scan bookkeeping attached to a search result.
type Meta struct {
	// Total is the backend's collection size from the last page, -1 when unknown.
	Total int
	// Offset is the backend position of the last page, -1 when unknown.
	Offset       int
	ScannedCount int
	RequestCount int
	LastID       string
}

// Result is the final, ordered output of one search.
type Result struct {
	records []record.Record
	meta    Meta
}

// New creates a search result.
func New(records []record.Record, meta Meta) Result {
	return Result{records: records, meta: meta}
}

// Records returns the matched records in final order.
func (r *Result) Records() []record.Record { return r.records }

// Meta returns the scan bookkeeping.
func (r *Result) Meta() Meta { return r.meta }

// Len returns the number of records.
func (r *Result) Len() int { return len(r.records) }

// Envelope is the metadata-wrapped result shape.
type Envelope struct {
	Results      []map[string]any `json:"results"`
	Total        int              `json:"total"`
	Offset       int              `json:"offset"`
	ScannedCount int              `json:"scanned_count"`
	RequestCount int              `json:"request_count"`
	LastID       string           `json:"last_id,omitempty"`
}

// Maps flattens the records into id/rev-carrying maps.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Map()
	}
	return out
}

// Shape returns the bare record list, or the Envelope when info is set.
func (r *Result) Shape(info bool) any {
	if !info {
		return r.Maps()
	}
	return Envelope{
		Results:      r.Maps(),
		Total:        r.meta.Total,
		Offset:       r.meta.Offset,
		ScannedCount: r.meta.ScannedCount,
		RequestCount: r.meta.RequestCount,
		LastID:       r.meta.LastID,
	}
}
