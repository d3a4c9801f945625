package backsync

import (
	"github.com/kailas-cloud/backsync/internal/domain/record"
	"github.com/kailas-cloud/backsync/internal/domain/search/result"
)

// Query is a filter object. Field keys hold a literal (equality) or an
// operator object such as {"$gt": 3}; all fields must match. The reserved
// keys "$sort", "$skip" and "$limit" control ordering and pagination.
type Query = map[string]any

// Document is a stored document: identifier, revision and its fields.
// Fields never carry "id" or "rev" keys.
type Document struct {
	ID     string
	Rev    string
	Fields map[string]any
}

// Map flattens the document into one map with "id" and "rev" keys.
func (d Document) Map() map[string]any {
	return toRecord(d).Map()
}

// Result is the ordered output of a search plus its scan bookkeeping.
type Result struct {
	Documents []Document
	// Total is the backend's collection size from the last page, -1 when unknown.
	Total int
	// Offset is the backend position of the last page, -1 when unknown.
	Offset       int
	ScannedCount int
	RequestCount int
	LastID       string
}

// Maps returns the documents as flat maps.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.Map()
	}
	return out
}

func toRecord(d Document) record.Record {
	return record.New(d.ID, d.Rev, d.Fields)
}

func fromRecord(r record.Record) Document {
	return Document{ID: r.ID, Rev: r.Rev, Fields: r.Fields}
}

func fromResult(res *result.Result) *Result {
	recs := res.Records()
	docs := make([]Document, len(recs))
	for i, r := range recs {
		docs[i] = fromRecord(r)
	}
	meta := res.Meta()
	return &Result{
		Documents:    docs,
		Total:        meta.Total,
		Offset:       meta.Offset,
		ScannedCount: meta.ScannedCount,
		RequestCount: meta.RequestCount,
		LastID:       meta.LastID,
	}
}
