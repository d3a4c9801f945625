package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
)

func docReply(rev, body string) rueidis.RedisResult {
	return mock.Result(mock.RedisArray(mock.RedisString(rev), mock.RedisString(body)))
}

func missingReply() rueidis.RedisResult {
	return mock.Result(mock.RedisArray(mock.RedisNil(), mock.RedisNil()))
}

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestLexBounds(t *testing.T) {
	tests := []struct {
		name     string
		p        query.ScanParams
		min, max string
	}{
		{"open", query.ScanParams{}, "-", "+"},
		{"start only", query.ScanParams{StartKey: "ab"}, "[ab", "+"},
		{"exclusive end", query.ScanParams{StartKey: "ab", EndKey: "ac", HasEndKey: true}, "[ab", "(ac"},
		{"inclusive end", query.ScanParams{EndKey: "ac", HasEndKey: true, InclusiveEnd: true}, "-", "[ac"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotMin, gotMax := lexBounds(tc.p)
			if gotMin != tc.min || gotMax != tc.max {
				t.Errorf("lexBounds = %q %q, want %q %q", gotMin, gotMax, tc.min, tc.max)
			}
		})
	}
}

// --- scan.go tests ---

func TestFetchPage_Range(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("ZCARD", "t:users:ids"),
			mock.Match("ZLEXCOUNT", "t:users:ids", "-", "(a"),
			mock.Match("ZRANGE", "t:users:ids", "[a", "+", "BYLEX", "LIMIT", "0", "3"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(5)),
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisArray(mock.RedisString("a1"), mock.RedisString("a2"), mock.RedisString("a3"))),
		})
	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("HMGET", "t:users:doc:a1", "rev", "body"),
			mock.Match("HMGET", "t:users:doc:a2", "rev", "body"),
		).
		Return([]rueidis.RedisResult{
			docReply("1-x", `{"age":30}`),
			missingReply(),
		})

	s := NewStoreForTest(c)
	page, err := s.FetchPage(context.Background(), "users", query.ScanParams{StartKey: "a", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 5 || page.Offset != 1 {
		t.Errorf("total/offset = %d/%d, want 5/1", page.Total, page.Offset)
	}
	if !page.HasMore {
		t.Error("expected HasMore with an extra id")
	}
	if len(page.Rows) != 1 {
		t.Fatalf("expected 1 row (a2 vanished), got %d", len(page.Rows))
	}
	row := page.Rows[0]
	if row.ID != "a1" || row.Rev != "1-x" || row.Doc["_id"] != "a1" || row.Doc["_rev"] != "1-x" || row.Doc["age"] != float64(30) {
		t.Errorf("unexpected row %+v", row)
	}
}

func TestFetchPage_EmptyCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(0)),
			mock.Result(mock.RedisInt64(0)),
			mock.Result(mock.RedisArray()),
		})

	s := NewStoreForTest(c)
	_, err := s.FetchPage(context.Background(), "nope", query.ScanParams{})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchPage_Keys(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("ZCARD", "t:users:ids")).
		Return(mock.Result(mock.RedisInt64(3)))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			missingReply(),
			docReply("2-y", `{"name":"Bob"}`),
		})

	s := NewStoreForTest(c)
	page, err := s.FetchPage(context.Background(), "users", query.ScanParams{Keys: []string{"x", "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMore || page.Offset != -1 {
		t.Errorf("key page: HasMore=%v Offset=%d", page.HasMore, page.Offset)
	}
	if len(page.Rows) != 1 || page.Rows[0].ID != "b" {
		t.Fatalf("unexpected rows %+v", page.Rows)
	}
}

func TestFetchPage_BadBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisInt64(1)))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{docReply("1-a", "{not json")})

	s := NewStoreForTest(c)
	_, err := s.FetchPage(context.Background(), "users", query.ScanParams{Keys: []string{"a"}})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpDecode {
		t.Fatalf("expected DECODE error, got %v", err)
	}
}

// --- docs.go tests ---

func TestGetDoc_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HMGET", "t:users:doc:u1", "rev", "body")).
		Return(missingReply())

	s := NewStoreForTest(c)
	if _, err := s.GetDoc(context.Background(), "users", "u1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutDoc_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "EVAL" && cmd[2] == "2" &&
				cmd[3] == "t:users:doc:u1" && cmd[4] == "t:users:ids" &&
				cmd[5] == "1-a" && cmd[6] == `{"name":"Ann"}` && cmd[7] == "u1" && len(cmd[8]) == 32
		})).
		Return(mock.Result(mock.RedisString("2-b")))

	s := NewStoreForTest(c)
	rev, err := s.PutDoc(context.Background(), "users", "u1", "1-a", map[string]any{
		"_id": "u1", "_rev": "1-a", "name": "Ann",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != "2-b" {
		t.Errorf("rev = %q, want 2-b", rev)
	}
}

func TestPutDoc_Conflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("CONFLICT revision mismatch")))

	s := NewStoreForTest(c)
	_, err := s.PutDoc(context.Background(), "users", "u1", "1-a", map[string]any{})
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteDoc_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "EVAL" && cmd[len(cmd)-1] == "u1"
		})).
		Return(mock.Result(mock.RedisError("NOTFOUND")))

	s := NewStoreForTest(c)
	if err := s.DeleteDoc(context.Background(), "users", "u1", ""); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
