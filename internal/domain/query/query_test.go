package query

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/backsync/internal/domain"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

func mustParse(t *testing.T, raw map[string]any) Query {
	t.Helper()
	q, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%v): %v", raw, err)
	}
	return q
}

func rec(id string, fields map[string]any) record.Record {
	return record.New(id, "", fields)
}

func TestParse_StripsReservedKeys(t *testing.T) {
	raw := map[string]any{
		"color":  "blue",
		"$sort":  "age",
		"$skip":  float64(1),
		"$limit": 2,
	}

	q := mustParse(t, raw)

	if q.Sort.Field != "age" || q.Sort.Desc {
		t.Errorf("sort = %+v", q.Sort)
	}
	if q.Skip != 1 || q.Limit != 2 || !q.HasLimit {
		t.Errorf("skip/limit = %d/%d/%v", q.Skip, q.Limit, q.HasLimit)
	}
	for _, e := range q.Filter.Exprs() {
		if e.Field() == KeySort || e.Field() == KeySkip || e.Field() == KeyLimit {
			t.Errorf("reserved key %q left in filter", e.Field())
		}
	}
	if len(q.Filter.Exprs()) != 1 {
		t.Errorf("expected 1 constraint, got %d", len(q.Filter.Exprs()))
	}
	if _, ok := raw["$sort"]; !ok {
		t.Error("Parse modified its input")
	}
}

func TestParse_Defaults(t *testing.T) {
	q := mustParse(t, map[string]any{})
	if q.Skip != 0 || q.HasLimit || !q.Sort.IsZero() || !q.Filter.IsEmpty() {
		t.Errorf("unexpected defaults %+v", q)
	}
	if q.Window() != -1 {
		t.Errorf("Window() = %d, want -1", q.Window())
	}
}

func TestParse_SortForms(t *testing.T) {
	tests := []struct {
		in   any
		want Sort
	}{
		{"age", Sort{Field: "age"}},
		{"-age", Sort{Field: "age", Desc: true}},
		{map[string]any{"age": float64(-1)}, Sort{Field: "age", Desc: true}},
		{map[string]any{"age": 1}, Sort{Field: "age"}},
	}
	for _, tc := range tests {
		q := mustParse(t, map[string]any{"$sort": tc.in})
		if q.Sort != tc.want {
			t.Errorf("sort %v = %+v, want %+v", tc.in, q.Sort, tc.want)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"non-array $in", map[string]any{"id": map[string]any{"$in": "abc"}}},
		{"non-array $nin", map[string]any{"tag": map[string]any{"$nin": 3}}},
		{"object bound", map[string]any{"age": map[string]any{"$gt": map[string]any{}}}},
		{"unknown operator", map[string]any{"age": map[string]any{"$regex": "x"}}},
		{"mixed object", map[string]any{"age": map[string]any{"$gt": 1, "x": 2}}},
		{"top-level operator", map[string]any{"$or": []any{}}},
		{"negative skip", map[string]any{"$skip": -1}},
		{"fractional limit", map[string]any{"$limit": 1.5}},
		{"string limit", map[string]any{"$limit": "ten"}},
		{"bad sort", map[string]any{"$sort": 3}},
		{"bad sort direction", map[string]any{"$sort": map[string]any{"a": 2}}},
		{"non-bool exists", map[string]any{"a": map[string]any{"$exists": "yes"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Fatalf("expected ErrInvalidQuery, got %v", err)
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	r := rec("m", map[string]any{
		"color": "blue",
		"age":   float64(30),
		"tags":  []any{"a", "b"},
		"owner": map[string]any{"name": "kim"},
	})

	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"empty", map[string]any{}, true},
		{"equality", map[string]any{"color": "blue"}, true},
		{"equality miss", map[string]any{"color": "green"}, false},
		{"int equals float", map[string]any{"age": 30}, true},
		{"missing field", map[string]any{"size": "xl"}, false},
		{"all fields must hold", map[string]any{"color": "blue", "age": 31}, false},
		{"$in hit", map[string]any{"color": map[string]any{"$in": []any{"red", "blue"}}}, true},
		{"$in miss", map[string]any{"color": map[string]any{"$in": []any{"red"}}}, false},
		{"$nin", map[string]any{"color": map[string]any{"$nin": []any{"red"}}}, true},
		{"$gte number", map[string]any{"age": map[string]any{"$gte": 30}}, true},
		{"$gt number", map[string]any{"age": map[string]any{"$gt": 30}}, false},
		{"$lt and $gt", map[string]any{"age": map[string]any{"$gt": 10, "$lt": 40}}, true},
		{"$lte number", map[string]any{"age": map[string]any{"$lte": 29.5}}, false},
		{"string range", map[string]any{"color": map[string]any{"$gte": "b", "$lt": "c"}}, true},
		{"kind mismatch", map[string]any{"age": map[string]any{"$gt": "1"}}, false},
		{"$ne", map[string]any{"color": map[string]any{"$ne": "blue"}}, false},
		{"$ne missing", map[string]any{"size": map[string]any{"$ne": "xl"}}, true},
		{"$exists", map[string]any{"size": map[string]any{"$exists": false}}, true},
		{"array contains", map[string]any{"tags": "b"}, true},
		{"dotted path", map[string]any{"owner.name": "kim"}, true},
		{"dotted path miss", map[string]any{"owner.age": 3}, false},
		{"id equality", map[string]any{"id": "m"}, true},
		{"id range", map[string]any{"id": map[string]any{"$gt": "m"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := mustParse(t, tc.raw)
			if got := q.Filter.Matches(r); got != tc.want {
				t.Errorf("Matches(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestFilter_FilterAllPreservesOrder(t *testing.T) {
	ages := []float64{30, 2, 15, 49, 7}
	colors := []string{"blue", "green", "blue", "blue", "blue"}
	var in []record.Record
	for i := range ages {
		in = append(in, rec(string(rune('a'+i)), map[string]any{"age": ages[i], "color": colors[i]}))
	}

	q := mustParse(t, map[string]any{"color": "blue"})
	out := q.Filter.FilterAll(in)

	want := []float64{30, 15, 49, 7}
	if len(out) != len(want) {
		t.Fatalf("got %d records, want %d", len(out), len(want))
	}
	for i, r := range out {
		if r.Fields["age"] != want[i] {
			t.Errorf("out[%d].age = %v, want %v", i, r.Fields["age"], want[i])
		}
	}
}

func TestSortCompare(t *testing.T) {
	if SortCompare(nil, false, float64(1), true) >= 0 {
		t.Error("missing should sort first")
	}
	if SortCompare(float64(2), true, float64(10), true) >= 0 {
		t.Error("numbers compare numerically")
	}
	if SortCompare("b", true, float64(10), true) <= 0 {
		t.Error("strings sort after numbers")
	}
	if SortCompare(true, true, false, true) <= 0 {
		t.Error("true sorts after false")
	}
}
