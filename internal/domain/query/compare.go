package query

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Compare orders two scalar values. Numbers compare numerically, strings
// lexically. The second result is false when the kinds differ or either
// value is not a string or number.
func Compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

// SortCompare is a total order used for sorting: missing < nil < bool <
// numbers < strings < everything else, with like kinds compared by Compare.
func SortCompare(a any, aok bool, b any, bok bool) int {
	ra, rb := rank(a, aok), rank(b, bok)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case rankNumber, rankString:
		c, _ := Compare(a, b)
		return c
	}
	return 0
}

const (
	rankMissing = iota
	rankNil
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v any, ok bool) int {
	if !ok {
		return rankMissing
	}
	if v == nil {
		return rankNil
	}
	if _, isBool := v.(bool); isBool {
		return rankBool
	}
	if _, isNum := toFloat(v); isNum {
		return rankNumber
	}
	if _, isStr := v.(string); isStr {
		return rankString
	}
	return rankOther
}

// equal compares two values, treating all numeric kinds as float64.
func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// equalOrContains matches scalars by equality and arrays by membership.
func equalOrContains(v, want any) bool {
	if equal(v, want) {
		return true
	}
	if arr, ok := v.([]any); ok {
		for _, el := range arr {
			if equal(el, want) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
