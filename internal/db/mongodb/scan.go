package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/query"
)

const (
	fieldID  = "_id"
	fieldRev = "_rev"
)

// FetchPage reads one _id-ordered page with find. Range scans count the
// collection and the rows before the start key, then fetch limit+1
// documents; the extra one tells whether the range continues.
// A collection without documents is db.ErrNotFound.
func (s *Store) FetchPage(ctx context.Context, collection string, p query.ScanParams) (*db.Page, error) {
	coll := s.db.Collection(collection)

	total, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	if total == 0 {
		return nil, db.ErrNotFound
	}

	if p.IsKeyList() {
		return s.fetchKeys(ctx, collection, int(total), p.Keys)
	}

	offset, err := coll.CountDocuments(ctx, bson.D{{Key: fieldID, Value: bson.D{{Key: "$lt", Value: p.StartKey}}}})
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	filter := rangeFilter(p)
	opts := options.Find().SetSort(bson.D{{Key: fieldID, Value: 1}}).SetLimit(int64(limit + 1))
	rows, err := s.find(ctx, collection, filter, opts)
	if err != nil {
		return nil, err
	}

	page := &db.Page{
		Total:  int(total),
		Offset: int(offset),
		Source: fmt.Sprintf("find %s.%s %v limit %d", s.db.Name(), collection, filter, limit+1),
	}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
	}
	page.Rows = rows
	return page, nil
}

func (s *Store) fetchKeys(ctx context.Context, collection string, total int, keys []string) (*db.Page, error) {
	filter := bson.D{{Key: fieldID, Value: bson.D{{Key: "$in", Value: keys}}}}
	found, err := s.find(ctx, collection, filter, options.Find())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]db.Row, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	page := &db.Page{
		Total:  total,
		Offset: -1,
		Source: fmt.Sprintf("find %s.%s %v", s.db.Name(), collection, filter),
	}
	for _, k := range keys {
		if r, ok := byID[k]; ok {
			page.Rows = append(page.Rows, r)
		}
	}
	return page, nil
}

func (s *Store) find(ctx context.Context, collection string, filter bson.D, opts *options.FindOptions) ([]db.Row, error) {
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &db.Error{Op: db.OpFetchPage, Err: err}
	}

	rows := make([]db.Row, 0, len(docs))
	for _, d := range docs {
		row, err := decodeRow(d)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// rangeFilter restricts _id to the scan range. The string start bound also
// keeps non-string ids out of the scan.
func rangeFilter(p query.ScanParams) bson.D {
	cond := bson.D{{Key: "$gte", Value: p.StartKey}}
	if p.HasEndKey {
		op := "$lt"
		if p.InclusiveEnd {
			op = "$lte"
		}
		cond = append(cond, bson.E{Key: op, Value: p.EndKey})
	}
	return bson.D{{Key: fieldID, Value: cond}}
}
