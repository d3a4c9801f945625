// Package query parses MongoDB-style query objects into a typed filter
// expression, evaluates it against records and derives backend scan
// parameters from identifier constraints.
package query

// Operator names recognised inside a field's operator object.
const (
	OpEq     = "$eq"
	OpNe     = "$ne"
	OpIn     = "$in"
	OpNin    = "$nin"
	OpGt     = "$gt"
	OpGte    = "$gte"
	OpLt     = "$lt"
	OpLte    = "$lte"
	OpExists = "$exists"
)

// Reserved top-level control keys, stripped from the filter before evaluation.
const (
	KeySort  = "$sort"
	KeySkip  = "$skip"
	KeyLimit = "$limit"
)

// Expr is a single field constraint. The set of implementations is closed:
// Equals, NotEquals, In, NotIn, Range and Exists.
type Expr interface {
	// Field returns the dotted path the constraint applies to.
	Field() string
	// Holds reports whether the constraint accepts the value found at Field.
	Holds(v any, present bool) bool

	expr()
}

// Equals matches a field equal to Value. Array fields match when any element is equal.
type Equals struct {
	Path  string
	Value any
}

// NotEquals is the negation of Equals; a missing field satisfies it.
type NotEquals struct {
	Path  string
	Value any
}

// In matches a field equal to any of Values.
type In struct {
	Path   string
	Values []any
}

// NotIn matches a field equal to none of Values.
type NotIn struct {
	Path   string
	Values []any
}

// Range bounds a field with ordered comparisons. Nil bounds are open.
// Bounds are strings or float64; a value of a different kind never matches.
type Range struct {
	Path string
	Gt   any
	Gte  any
	Lt   any
	Lte  any
}

// Exists matches on field presence.
type Exists struct {
	Path string
	Want bool
}

func (e Equals) Field() string    { return e.Path }
func (e NotEquals) Field() string { return e.Path }
func (e In) Field() string        { return e.Path }
func (e NotIn) Field() string     { return e.Path }
func (e Range) Field() string     { return e.Path }
func (e Exists) Field() string    { return e.Path }

func (Equals) expr()    {}
func (NotEquals) expr() {}
func (In) expr()        {}
func (NotIn) expr()     {}
func (Range) expr()     {}
func (Exists) expr()    {}

// Holds implements Expr.
func (e Equals) Holds(v any, present bool) bool {
	return present && equalOrContains(v, e.Value)
}

// Holds implements Expr.
func (e NotEquals) Holds(v any, present bool) bool {
	return !present || !equalOrContains(v, e.Value)
}

// Holds implements Expr.
func (e In) Holds(v any, present bool) bool {
	if !present {
		return false
	}
	for _, want := range e.Values {
		if equalOrContains(v, want) {
			return true
		}
	}
	return false
}

// Holds implements Expr.
func (e NotIn) Holds(v any, present bool) bool {
	return !In{Path: e.Path, Values: e.Values}.Holds(v, present)
}

// Holds implements Expr.
func (e Range) Holds(v any, present bool) bool {
	if !present {
		return false
	}
	if e.Gt != nil && !cmpOK(v, e.Gt, func(c int) bool { return c > 0 }) {
		return false
	}
	if e.Gte != nil && !cmpOK(v, e.Gte, func(c int) bool { return c >= 0 }) {
		return false
	}
	if e.Lt != nil && !cmpOK(v, e.Lt, func(c int) bool { return c < 0 }) {
		return false
	}
	if e.Lte != nil && !cmpOK(v, e.Lte, func(c int) bool { return c <= 0 }) {
		return false
	}
	return true
}

// Holds implements Expr.
func (e Exists) Holds(_ any, present bool) bool {
	return present == e.Want
}

func cmpOK(v, bound any, ok func(int) bool) bool {
	c, comparable := Compare(v, bound)
	return comparable && ok(c)
}
