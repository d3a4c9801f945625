package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func seed(t *testing.T, s *Store, coll string, ids ...string) {
	t.Helper()
	for i, id := range ids {
		if _, err := s.PutDoc(context.Background(), coll, id, "", map[string]any{"n": i}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func ids(rows []db.Row) string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return strings.Join(out, ",")
}

func TestFetchPage_MissingCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FetchPage(context.Background(), "nope", query.ScanParams{})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchPage_Paging(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "users", "d", "b", "a", "c", "e")
	seed(t, s, "other", "a")
	ctx := context.Background()

	page, err := s.FetchPage(ctx, "users", query.ScanParams{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Rows); got != "a,b" {
		t.Errorf("first page = %s, want a,b", got)
	}
	if !page.HasMore || page.Total != 5 || page.Offset != 0 {
		t.Errorf("page meta: HasMore=%v Total=%d Offset=%d", page.HasMore, page.Total, page.Offset)
	}

	page, err = s.FetchPage(ctx, "users", query.ScanParams{StartKey: "d", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Rows); got != "d,e" {
		t.Errorf("last page = %s, want d,e", got)
	}
	if page.HasMore || page.Offset != 3 {
		t.Errorf("last page meta: HasMore=%v Offset=%d", page.HasMore, page.Offset)
	}
	if page.Rows[0].Doc["_id"] != "d" || page.Rows[0].Doc["_rev"] != page.Rows[0].Rev {
		t.Errorf("row doc missing identity: %v", page.Rows[0].Doc)
	}
}

func TestFetchPage_EndKey(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "users", "aa", "ab1", "ab2", "ac", "ad")
	ctx := context.Background()

	page, err := s.FetchPage(ctx, "users", query.ScanParams{StartKey: "ab", EndKey: "ac", HasEndKey: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Rows); got != "ab1,ab2" {
		t.Errorf("exclusive = %s", got)
	}

	page, err = s.FetchPage(ctx, "users", query.ScanParams{StartKey: "ab", EndKey: "ac", HasEndKey: true, InclusiveEnd: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Rows); got != "ab1,ab2,ac" {
		t.Errorf("inclusive = %s", got)
	}
}

func TestFetchPage_KeysKeepOrder(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "users", "a", "b", "c")

	page, err := s.FetchPage(context.Background(), "users", query.ScanParams{Keys: []string{"c", "x", "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Rows); got != "c,a" {
		t.Errorf("keys = %s, want c,a", got)
	}
	if page.HasMore {
		t.Error("key page should not report HasMore")
	}
}

func TestPutDoc_Revisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rev1, err := s.PutDoc(ctx, "users", "u1", "", map[string]any{"name": "Ann", "_id": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rev1, "1-") {
		t.Errorf("rev1 = %q", rev1)
	}

	if _, err := s.PutDoc(ctx, "users", "u1", "", map[string]any{}); !errors.Is(err, db.ErrConflict) {
		t.Errorf("duplicate create: expected ErrConflict, got %v", err)
	}

	rev2, err := s.PutDoc(ctx, "users", "u1", rev1, map[string]any{"name": "Bob"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rev2, "2-") {
		t.Errorf("rev2 = %q", rev2)
	}

	if _, err := s.PutDoc(ctx, "users", "u1", rev1, map[string]any{}); !errors.Is(err, db.ErrConflict) {
		t.Errorf("stale rev: expected ErrConflict, got %v", err)
	}

	row, err := s.GetDoc(ctx, "users", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Rev != rev2 || row.Doc["name"] != "Bob" {
		t.Errorf("unexpected row %+v", row)
	}
}

func TestDeleteDoc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rev, err := s.PutDoc(ctx, "users", "u1", "", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteDoc(ctx, "users", "u1", "9-stale"); !errors.Is(err, db.ErrConflict) {
		t.Errorf("stale delete: expected ErrConflict, got %v", err)
	}
	if err := s.DeleteDoc(ctx, "users", "u1", rev); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDoc(ctx, "users", "u1", ""); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
