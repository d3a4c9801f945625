// Package sqlite is an embedded SQL backend. Documents live in one table keyed
// by (collection, id); the primary key index gives the ordered scan.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultPageSize bounds a range read when the scan sets no limit.
const DefaultPageSize = 1000

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	rev        TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
) WITHOUT ROWID;`

// Store implements db.Store over SQLite.
type Store struct {
	db       *sql.DB
	path     string
	pageSize int
}

// NewStore opens (or creates) a SQLite database. Use ":memory:" for a
// throwaway in-process database.
func NewStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one connection: sqlite has a single writer and ":memory:" is per-connection
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: conn, path: path, pageSize: DefaultPageSize}, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady pings once; a local file is either usable or not.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Ping(ctx)
}

// FetchPage reads one id-ordered page. A collection without rows is db.ErrNotFound.
func (s *Store) FetchPage(ctx context.Context, collection string, p query.ScanParams) (*db.Page, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", collection,
	).Scan(&total)
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	if total == 0 {
		return nil, db.ErrNotFound
	}

	if p.IsKeyList() {
		return s.fetchKeys(ctx, collection, total, p.Keys)
	}

	var offset int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ? AND id < ?", collection, p.StartKey,
	).Scan(&offset)
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	stmt := "SELECT id, rev, body FROM documents WHERE collection = ? AND id >= ?"
	args := []any{collection, p.StartKey}
	if p.HasEndKey {
		if p.InclusiveEnd {
			stmt += " AND id <= ?"
		} else {
			stmt += " AND id < ?"
		}
		args = append(args, p.EndKey)
	}
	stmt += " ORDER BY id LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.queryRows(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	page := &db.Page{Total: total, Offset: offset, Source: "sqlite:" + s.path + "/" + collection}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
	}
	page.Rows = rows
	return page, nil
}

func (s *Store) fetchKeys(ctx context.Context, collection string, total int, keys []string) (*db.Page, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, 0, len(keys)+1)
	args = append(args, collection)
	for _, k := range keys {
		args = append(args, k)
	}

	found, err := s.queryRows(ctx,
		"SELECT id, rev, body FROM documents WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]db.Row, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	page := &db.Page{Total: total, Offset: -1, Source: "sqlite:" + s.path + "/" + collection}
	for _, k := range keys {
		if r, ok := byID[k]; ok {
			page.Rows = append(page.Rows, r)
		}
	}
	return page, nil
}

func (s *Store) queryRows(ctx context.Context, stmt string, args ...any) ([]db.Row, error) {
	rs, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	defer rs.Close()

	var out []db.Row
	for rs.Next() {
		var id, rev, body string
		if err := rs.Scan(&id, &rev, &body); err != nil {
			return nil, &db.Error{Op: db.OpFetchPage, Err: err}
		}
		row, err := decodeRow(id, rev, body)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	return out, nil
}

// GetDoc reads a single document.
func (s *Store) GetDoc(ctx context.Context, collection, id string) (db.Row, error) {
	var rev, body string
	err := s.db.QueryRowContext(ctx,
		"SELECT rev, body FROM documents WHERE collection = ? AND id = ?", collection, id,
	).Scan(&rev, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Row{}, db.ErrNotFound
	}
	if err != nil {
		return db.Row{}, &db.Error{Op: db.OpGet, Err: err}
	}
	return decodeRow(id, rev, body)
}

// PutDoc inserts (empty rev) or replaces a document whose stored rev matches.
func (s *Store) PutDoc(ctx context.Context, collection, id, rev string, doc map[string]any) (string, error) {
	body, err := json.Marshal(record.CouchCodec.Denormalize(record.Record{Fields: doc}))
	if err != nil {
		return "", &db.Error{Op: db.OpPut, Err: fmt.Errorf("marshal: %w", err)}
	}

	newRev := db.NextRev(rev)
	now := time.Now().UTC().Format(time.RFC3339)

	var res sql.Result
	if rev == "" {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, id, rev, body, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (collection, id) DO NOTHING`,
			collection, id, newRev, string(body), now)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE documents SET rev = ?, body = ?, updated_at = ? WHERE collection = ? AND id = ? AND rev = ?",
			newRev, string(body), now, collection, id, rev)
	}
	if err != nil {
		return "", &db.Error{Op: db.OpPut, Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", &db.Error{Op: db.OpPut, Err: err}
	}
	if n == 0 {
		return "", &db.Error{Op: db.OpPut, Err: db.ErrConflict}
	}
	return newRev, nil
}

// DeleteDoc removes a document. An empty rev deletes whatever revision is current.
func (s *Store) DeleteDoc(ctx context.Context, collection, id, rev string) error {
	stmt := "DELETE FROM documents WHERE collection = ? AND id = ?"
	args := []any{collection, id}
	if rev != "" {
		stmt += " AND rev = ?"
		args = append(args, rev)
	}

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetDoc(ctx, collection, id); err != nil {
		return err
	}
	return &db.Error{Op: db.OpDelete, Err: db.ErrConflict}
}

func decodeRow(id, rev, body string) (db.Row, error) {
	doc := make(map[string]any)
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return db.Row{}, &db.Error{Op: db.OpDecode, Err: fmt.Errorf("document %s: %w", id, err)}
	}
	doc[record.CouchCodec.IDField] = id
	doc[record.CouchCodec.RevField] = rev
	return db.Row{ID: id, Rev: rev, Doc: doc}, nil
}
