// Package memory is an in-process key-value backend. Collections are kept as
// id-sorted maps so page reads behave like a real ordered scan endpoint.
package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultPageSize bounds a page when the scan does not set a limit.
const DefaultPageSize = 1000

type entry struct {
	gen int
	doc map[string]any
}

type collection struct {
	ids  []string // sorted
	docs map[string]entry
}

// Store implements db.Store over process memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	pageSize    int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection), pageSize: DefaultPageSize}
}

// WithPageSize overrides the default page size used when a scan sets no limit.
func (s *Store) WithPageSize(n int) *Store {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// FetchPage returns one id-ordered page. A missing collection is db.ErrNotFound.
func (s *Store) FetchPage(ctx context.Context, coll string, p query.ScanParams) (*db.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return nil, db.ErrNotFound
	}

	page := &db.Page{Total: len(c.ids), Source: "memory:" + coll}

	if p.IsKeyList() {
		page.Offset = 0
		for _, id := range p.Keys {
			if e, ok := c.docs[id]; ok {
				page.Rows = append(page.Rows, row(id, e))
			}
		}
		return page, nil
	}

	limit := p.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	start, _ := slices.BinarySearch(c.ids, p.StartKey)
	page.Offset = start
	i := start
	for ; i < len(c.ids) && len(page.Rows) < limit; i++ {
		id := c.ids[i]
		if !p.ContainsKey(id) {
			break
		}
		page.Rows = append(page.Rows, row(id, c.docs[id]))
	}
	page.HasMore = i < len(c.ids) && p.ContainsKey(c.ids[i])
	return page, nil
}

// GetDoc returns a copy of a stored document.
func (s *Store) GetDoc(_ context.Context, coll, id string) (db.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return db.Row{}, db.ErrNotFound
	}
	e, ok := c.docs[id]
	if !ok {
		return db.Row{}, db.ErrNotFound
	}
	return row(id, e), nil
}

// PutDoc creates or replaces a document, checking rev against the stored generation.
func (s *Store) PutDoc(_ context.Context, coll, id, rev string, doc map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[coll]
	if !ok {
		c = &collection{docs: make(map[string]entry)}
		s.collections[coll] = c
	}

	cur, exists := c.docs[id]
	if exists && rev != formatRev(cur.gen) {
		return "", db.ErrConflict
	}
	if !exists && rev != "" {
		return "", db.ErrConflict
	}

	next := entry{gen: cur.gen + 1, doc: deepCopy(record.CouchCodec.Denormalize(record.Record{Fields: doc}))}
	c.docs[id] = next
	if !exists {
		i, _ := slices.BinarySearch(c.ids, id)
		c.ids = slices.Insert(c.ids, i, id)
	}
	return formatRev(next.gen), nil
}

// DeleteDoc removes a document if rev is current.
func (s *Store) DeleteDoc(_ context.Context, coll, id, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[coll]
	if !ok {
		return db.ErrNotFound
	}
	cur, ok := c.docs[id]
	if !ok {
		return db.ErrNotFound
	}
	if rev != "" && rev != formatRev(cur.gen) {
		return db.ErrConflict
	}
	delete(c.docs, id)
	if i, found := slices.BinarySearch(c.ids, id); found {
		c.ids = slices.Delete(c.ids, i, i+1)
	}
	return nil
}

func row(id string, e entry) db.Row {
	rev := formatRev(e.gen)
	doc := deepCopy(e.doc)
	doc[record.CouchCodec.IDField] = id
	doc[record.CouchCodec.RevField] = rev
	return db.Row{ID: id, Rev: rev, Doc: doc}
}

func formatRev(gen int) string {
	if gen == 0 {
		return ""
	}
	return strconv.Itoa(gen)
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = deepCopyValue(el)
		}
		return out
	}
	return v
}
