package record

import "fmt"

// Codec maps backend-native identifier and version fields to Record.ID/Rev.
type Codec struct {
	IDField  string
	RevField string
}

// CouchCodec matches CouchDB's _id/_rev wire fields.
var CouchCodec = Codec{IDField: "_id", RevField: "_rev"}

// Normalize converts a raw wire document into a Record.
// Backend-native id/rev fields are removed; the raw map is not modified.
func (c Codec) Normalize(raw map[string]any) Record {
	var id, rev string
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case c.IDField:
			id = stringify(v)
		case c.RevField:
			rev = stringify(v)
		case FieldID, FieldRev:
			// logical names never come from the wire
		default:
			fields[k] = v
		}
	}
	return Record{ID: id, Rev: rev, Fields: fields}
}

// Denormalize builds a write payload from a Record. Neither the logical
// id/rev nor the backend fields are included: the id travels in the key
// and the revision in the write precondition.
func (c Codec) Denormalize(r Record) map[string]any {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		switch k {
		case FieldID, FieldRev, c.IDField, c.RevField:
			continue
		}
		out[k] = v
	}
	return out
}

// WithIdentity is Denormalize plus the backend id/rev fields, for stores
// that keep identity inside the document body.
func (c Codec) WithIdentity(r Record) map[string]any {
	out := c.Denormalize(r)
	out[c.IDField] = r.ID
	if r.Rev != "" && c.RevField != "" {
		out[c.RevField] = r.Rev
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
