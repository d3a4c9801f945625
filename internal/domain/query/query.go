package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/backsync/internal/domain"
)

// Sort names the field results are ordered by.
type Sort struct {
	Field string
	Desc  bool
}

// IsZero reports whether no sort was requested.
func (s Sort) IsZero() bool { return s.Field == "" }

// Query is a parsed search request.
type Query struct {
	Filter   Filter
	Sort     Sort
	Skip     int
	Limit    int
	HasLimit bool
}

// Window returns the number of leading results needed to satisfy skip+limit,
// or -1 when the limit is unbounded.
func (q Query) Window() int {
	if !q.HasLimit {
		return -1
	}
	return q.Skip + q.Limit
}

// Parse extracts the reserved $sort, $skip and $limit keys from raw and
// parses the remainder into a Filter. raw is not modified.
func Parse(raw map[string]any) (Query, error) {
	var q Query
	rest := make(map[string]any, len(raw))
	for k, v := range raw {
		rest[k] = v
	}

	if v, ok := rest[KeySort]; ok {
		delete(rest, KeySort)
		s, err := parseSort(v)
		if err != nil {
			return Query{}, err
		}
		q.Sort = s
	}
	if v, ok := rest[KeySkip]; ok {
		delete(rest, KeySkip)
		n, err := parseCount(KeySkip, v)
		if err != nil {
			return Query{}, err
		}
		q.Skip = n
	}
	if v, ok := rest[KeyLimit]; ok {
		delete(rest, KeyLimit)
		if v != nil {
			n, err := parseCount(KeyLimit, v)
			if err != nil {
				return Query{}, err
			}
			q.Limit, q.HasLimit = n, true
		}
	}

	f, err := ParseFilter(rest)
	if err != nil {
		return Query{}, err
	}
	q.Filter = f
	return q, nil
}

// ParseFilter parses a filter object. Top-level keys starting with "$" are rejected.
func ParseFilter(raw map[string]any) (Filter, error) {
	paths := make([]string, 0, len(raw))
	for k := range raw {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	var f Filter
	for _, path := range paths {
		if path == "" {
			return Filter{}, domain.NewValidation(path, "empty field name")
		}
		if strings.HasPrefix(path, "$") {
			return Filter{}, domain.NewValidation(path, "unsupported top-level operator")
		}
		exprs, err := parseField(path, raw[path])
		if err != nil {
			return Filter{}, err
		}
		f.exprs = append(f.exprs, exprs...)
	}
	return f, nil
}

func parseField(path string, v any) ([]Expr, error) {
	ops, ok := v.(map[string]any)
	if !ok || !isOperatorObject(ops) {
		if ok && hasOperatorKey(ops) {
			return nil, domain.NewValidation(path, "cannot mix operators and plain fields")
		}
		return []Expr{Equals{Path: path, Value: normalize(v)}}, nil
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	var (
		exprs []Expr
		rng   = Range{Path: path}
		isRng bool
	)
	for _, op := range names {
		arg := ops[op]
		switch op {
		case OpEq:
			exprs = append(exprs, Equals{Path: path, Value: normalize(arg)})
		case OpNe:
			exprs = append(exprs, NotEquals{Path: path, Value: normalize(arg)})
		case OpIn, OpNin:
			values, err := parseList(path, op, arg)
			if err != nil {
				return nil, err
			}
			if op == OpIn {
				exprs = append(exprs, In{Path: path, Values: values})
			} else {
				exprs = append(exprs, NotIn{Path: path, Values: values})
			}
		case OpGt, OpGte, OpLt, OpLte:
			b, err := parseBound(path, op, arg)
			if err != nil {
				return nil, err
			}
			isRng = true
			switch op {
			case OpGt:
				rng.Gt = b
			case OpGte:
				rng.Gte = b
			case OpLt:
				rng.Lt = b
			case OpLte:
				rng.Lte = b
			}
		case OpExists:
			want, ok := arg.(bool)
			if !ok {
				return nil, domain.NewValidation(path, "$exists requires a boolean")
			}
			exprs = append(exprs, Exists{Path: path, Want: want})
		default:
			return nil, domain.NewValidation(path, fmt.Sprintf("unknown operator %s", op))
		}
	}
	if isRng {
		exprs = append(exprs, rng)
	}
	return exprs, nil
}

func isOperatorObject(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func hasOperatorKey(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func parseList(path, op string, arg any) ([]any, error) {
	var list []any
	switch a := arg.(type) {
	case []any:
		list = a
	case []string:
		for _, s := range a {
			list = append(list, s)
		}
	default:
		return nil, domain.NewValidation(path, op+" requires an array")
	}
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = normalize(v)
	}
	return out, nil
}

func parseBound(path, op string, arg any) (any, error) {
	if f, ok := toFloat(arg); ok {
		return f, nil
	}
	if s, ok := arg.(string); ok {
		return s, nil
	}
	return nil, domain.NewValidation(path, op+" requires a string or number")
}

func parseSort(v any) (Sort, error) {
	switch s := v.(type) {
	case nil:
		return Sort{}, nil
	case string:
		if strings.HasPrefix(s, "-") {
			return Sort{Field: s[1:], Desc: true}, validSortField(s[1:])
		}
		return Sort{Field: s}, validSortField(s)
	case map[string]any:
		if len(s) != 1 {
			return Sort{}, domain.NewValidation(KeySort, "sort object must name exactly one field")
		}
		for field, dir := range s {
			d, ok := toFloat(dir)
			if !ok || (d != 1 && d != -1) {
				return Sort{}, domain.NewValidation(KeySort, "sort direction must be 1 or -1")
			}
			return Sort{Field: field, Desc: d < 0}, validSortField(field)
		}
	}
	return Sort{}, domain.NewValidation(KeySort, "must be a field name")
}

func validSortField(f string) error {
	if f == "" {
		return domain.NewValidation(KeySort, "empty field name")
	}
	return nil
}

func parseCount(key string, v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, domain.NewValidation(key, "must be a non-negative integer")
		}
		f = float64(parsed)
	default:
		var ok bool
		if f, ok = toFloat(v); !ok {
			return 0, domain.NewValidation(key, "must be a non-negative integer")
		}
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, domain.NewValidation(key, "must be a non-negative integer")
	}
	return int(f), nil
}

// normalize folds numeric kinds into float64 so comparisons match JSON-decoded records.
func normalize(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}
