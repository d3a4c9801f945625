package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	fetchPageFn func(ctx context.Context, coll string, p query.ScanParams) (*db.Page, error)
	getDocFn    func(ctx context.Context, coll, id string) (db.Row, error)
	putDocFn    func(ctx context.Context, coll, id, rev string, doc map[string]any) (string, error)
	deleteDocFn func(ctx context.Context, coll, id, rev string) error

	puts []putCall
}

type putCall struct {
	coll, id, rev string
	doc           map[string]any
}

func (m *mockStore) FetchPage(ctx context.Context, coll string, p query.ScanParams) (*db.Page, error) {
	if m.fetchPageFn != nil {
		return m.fetchPageFn(ctx, coll, p)
	}
	return &db.Page{Total: -1, Offset: -1}, nil
}

func (m *mockStore) GetDoc(ctx context.Context, coll, id string) (db.Row, error) {
	if m.getDocFn != nil {
		return m.getDocFn(ctx, coll, id)
	}
	return db.Row{}, db.ErrNotFound
}

func (m *mockStore) PutDoc(ctx context.Context, coll, id, rev string, doc map[string]any) (string, error) {
	m.puts = append(m.puts, putCall{coll: coll, id: id, rev: rev, doc: doc})
	if m.putDocFn != nil {
		return m.putDocFn(ctx, coll, id, rev, doc)
	}
	return "1-new", nil
}

func (m *mockStore) DeleteDoc(ctx context.Context, coll, id, rev string) error {
	if m.deleteDocFn != nil {
		return m.deleteDocFn(ctx, coll, id, rev)
	}
	return nil
}

// mockCreatorStore adds db.DatabaseCreator.
type mockCreatorStore struct {
	mockStore
	created []string
	createErr error
}

func (m *mockCreatorStore) CreateDatabase(_ context.Context, coll string) error {
	m.created = append(m.created, coll)
	return m.createErr
}

// mockMergerStore adds db.Merger.
type mockMergerStore struct {
	mockStore
	mergeDocFn func(ctx context.Context, coll, id string, fields map[string]any) (db.Row, error)
}

func (m *mockMergerStore) MergeDoc(ctx context.Context, coll, id string, fields map[string]any) (db.Row, error) {
	return m.mergeDocFn(ctx, coll, id, fields)
}

func newTestRepo(t *testing.T, opts ...Option) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, opts...), ms
}
