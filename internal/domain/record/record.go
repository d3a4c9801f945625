// Package record defines the logical record shape callers see and the
// codec that maps backend wire documents to and from it.
package record

import "maps"

// Reserved logical field names.
const (
	FieldID  = "id"
	FieldRev = "rev"
)

// Record is a normalized document: identifier, optional revision and free-form fields.
type Record struct {
	ID     string
	Rev    string
	Fields map[string]any
}

// New creates a Record with a copy of fields, dropping any id/rev keys.
func New(id, rev string, fields map[string]any) Record {
	f := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == FieldID || k == FieldRev {
			continue
		}
		f[k] = v
	}
	return Record{ID: id, Rev: rev, Fields: f}
}

// Get returns a field value. "id" and "rev" resolve to the record identity.
func (r Record) Get(field string) (any, bool) {
	switch field {
	case FieldID:
		return r.ID, r.ID != ""
	case FieldRev:
		return r.Rev, r.Rev != ""
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Clone returns a shallow copy with its own field map.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Rev: r.Rev, Fields: maps.Clone(r.Fields)}
}

// Map flattens the record into a single map with id and rev keys.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Fields)+2)
	maps.Copy(m, r.Fields)
	m[FieldID] = r.ID
	if r.Rev != "" {
		m[FieldRev] = r.Rev
	}
	return m
}

// FromMap builds a Record from a flat map carrying id and rev keys.
func FromMap(m map[string]any) Record {
	id, _ := m[FieldID].(string)
	rev, _ := m[FieldRev].(string)
	return New(id, rev, m)
}

// Merge returns a copy of r with attrs applied on top. id and rev in attrs are ignored.
func (r Record) Merge(attrs map[string]any) Record {
	out := r.Clone()
	if out.Fields == nil {
		out.Fields = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		if k == FieldID || k == FieldRev {
			continue
		}
		out.Fields[k] = v
	}
	return out
}
