package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// FetchPage reads one id-ordered page. Range scans run ZCARD, ZLEXCOUNT and
// ZRANGE BYLEX in one round-trip, then HMGET the documents in a second.
// A collection without ids is db.ErrNotFound.
func (s *Store) FetchPage(ctx context.Context, collection string, p query.ScanParams) (*db.Page, error) {
	if p.IsKeyList() {
		return s.fetchKeys(ctx, collection, p.Keys)
	}

	idsKey := s.idsKey(collection)
	minLex, maxLex := lexBounds(p)
	limit := int64(p.Limit)
	if limit <= 0 {
		limit = s.pageSize
	}

	cmds := rueidis.Commands{
		s.b().Zcard().Key(idsKey).Build(),
		s.b().Zlexcount().Key(idsKey).Min("-").Max(offsetBound(p)).Build(),
		// one extra id tells whether the range continues past this page
		s.b().Zrange().Key(idsKey).Min(minLex).Max(maxLex).Bylex().Limit(0, limit+1).Build(),
	}
	res := s.client.DoMulti(ctx, cmds...)

	total, err := res[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	if total == 0 {
		return nil, db.ErrNotFound
	}
	offset, err := res[1].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	ids, err := res[2].AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}

	page := &db.Page{
		Total:  int(total),
		Offset: int(offset),
		Source: fmt.Sprintf("ZRANGE %s %s %s BYLEX LIMIT 0 %d", idsKey, minLex, maxLex, limit+1),
	}
	if int64(len(ids)) > limit {
		ids = ids[:limit]
		page.HasMore = true
	}

	page.Rows, err = s.loadRows(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Store) fetchKeys(ctx context.Context, collection string, keys []string) (*db.Page, error) {
	total, err := s.do(ctx, s.b().Zcard().Key(s.idsKey(collection)).Build()).AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	if total == 0 {
		return nil, db.ErrNotFound
	}

	rows, err := s.loadRows(ctx, collection, keys)
	if err != nil {
		return nil, err
	}
	return &db.Page{
		Rows:   rows,
		Total:  int(total),
		Offset: -1,
		Source: "HMGET " + s.prefix + collection + ":doc:{" + strings.Join(keys, ",") + "}",
	}, nil
}

// loadRows fetches documents for ids in order, skipping ids whose hash is gone.
func (s *Store) loadRows(ctx context.Context, collection string, ids []string) ([]db.Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(ids))
	for i, id := range ids {
		cmds[i] = s.b().Hmget().Key(s.docKey(collection, id)).Field("rev", "body").Build()
	}

	rows := make([]db.Row, 0, len(ids))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		vals, err := res.ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpFetchPage, Err: fmt.Errorf("key %s: %w", ids[i], err)}
		}
		row, ok, err := decodeRow(ids[i], vals)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// decodeRow turns an HMGET rev body reply into a row. ok is false when the hash is missing.
func decodeRow(id string, vals []rueidis.RedisMessage) (db.Row, bool, error) {
	if len(vals) != 2 {
		return db.Row{}, false, &db.Error{Op: db.OpDecode, Err: fmt.Errorf("key %s: expected 2 fields, got %d", id, len(vals))}
	}
	if vals[0].IsNil() {
		return db.Row{}, false, nil
	}
	rev, err := vals[0].ToString()
	if err != nil {
		return db.Row{}, false, &db.Error{Op: db.OpDecode, Err: err}
	}
	body, err := vals[1].ToString()
	if err != nil {
		return db.Row{}, false, &db.Error{Op: db.OpDecode, Err: err}
	}

	doc := make(map[string]any)
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return db.Row{}, false, &db.Error{Op: db.OpDecode, Err: fmt.Errorf("key %s: %w", id, err)}
	}
	doc[record.CouchCodec.IDField] = id
	doc[record.CouchCodec.RevField] = rev
	return db.Row{ID: id, Rev: rev, Doc: doc}, true, nil
}

// lexBounds maps scan bounds onto ZRANGE BYLEX min/max arguments.
func lexBounds(p query.ScanParams) (string, string) {
	minLex := "-"
	if p.StartKey != "" {
		minLex = "[" + p.StartKey
	}
	maxLex := "+"
	if p.HasEndKey {
		if p.InclusiveEnd {
			maxLex = "[" + p.EndKey
		} else {
			maxLex = "(" + p.EndKey
		}
	}
	return minLex, maxLex
}

// offsetBound is the ZLEXCOUNT max that counts ids sorting before the start key.
func offsetBound(p query.ScanParams) string {
	if p.StartKey == "" {
		return "-"
	}
	return "(" + p.StartKey
}
