package query

import (
	"strings"

	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// Filter is a conjunction of field constraints. The zero Filter matches everything.
type Filter struct {
	exprs []Expr
}

// NewFilter builds a Filter from already-typed constraints.
func NewFilter(exprs ...Expr) Filter {
	return Filter{exprs: exprs}
}

// Exprs returns the constraints in evaluation order.
func (f Filter) Exprs() []Expr { return f.exprs }

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool { return len(f.exprs) == 0 }

// Matches reports whether every constraint holds for r.
func (f Filter) Matches(r record.Record) bool {
	for _, e := range f.exprs {
		v, ok := Lookup(r, e.Field())
		if !e.Holds(v, ok) {
			return false
		}
	}
	return true
}

// FilterAll returns the matching records in their input order.
func (f Filter) FilterAll(records []record.Record) []record.Record {
	if f.IsEmpty() {
		return records
	}
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Lookup resolves a dotted path against a record. "id" and "rev" resolve
// to the record identity.
func Lookup(r record.Record, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return r.Get(path)
	}
	v, ok := r.Get(head)
	for ok {
		m, isMap := v.(map[string]any)
		if !isMap {
			return nil, false
		}
		head, rest, nested = strings.Cut(rest, ".")
		v, ok = m[head]
		if !nested {
			return v, ok
		}
	}
	return nil, false
}
