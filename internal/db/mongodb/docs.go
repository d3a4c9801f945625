package mongodb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// GetDoc reads a single document.
func (s *Store) GetDoc(ctx context.Context, collection, id string) (db.Row, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: fieldID, Value: id}}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return db.Row{}, db.ErrNotFound
	}
	if err != nil {
		return db.Row{}, &db.Error{Op: db.OpGet, Err: err}
	}
	return decodeRow(raw)
}

// PutDoc inserts (empty rev) or replaces a document whose stored _rev matches.
func (s *Store) PutDoc(ctx context.Context, collection, id, rev string, doc map[string]any) (string, error) {
	body := record.CouchCodec.Denormalize(record.Record{Fields: doc})
	newRev := db.NextRev(rev)
	body[fieldID] = id
	body[fieldRev] = newRev

	coll := s.db.Collection(collection)
	if rev == "" {
		if _, err := coll.InsertOne(ctx, body); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return "", &db.Error{Op: db.OpPut, Err: db.ErrConflict}
			}
			return "", &db.Error{Op: db.OpPut, Err: err}
		}
		return newRev, nil
	}

	res, err := coll.ReplaceOne(ctx, bson.D{{Key: fieldID, Value: id}, {Key: fieldRev, Value: rev}}, body)
	if err != nil {
		return "", &db.Error{Op: db.OpPut, Err: err}
	}
	if res.MatchedCount == 0 {
		return "", &db.Error{Op: db.OpPut, Err: db.ErrConflict}
	}
	return newRev, nil
}

// DeleteDoc removes a document. An empty rev deletes whatever revision is current.
func (s *Store) DeleteDoc(ctx context.Context, collection, id, rev string) error {
	filter := bson.D{{Key: fieldID, Value: id}}
	if rev != "" {
		filter = append(filter, bson.E{Key: fieldRev, Value: rev})
	}

	res, err := s.db.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if res.DeletedCount > 0 {
		return nil
	}

	if _, err := s.GetDoc(ctx, collection, id); err != nil {
		return err
	}
	return &db.Error{Op: db.OpDelete, Err: db.ErrConflict}
}

// MergeDoc sets fields on the stored document and bumps its revision in a
// single findAndModify. Field values are written literally, never evaluated
// as aggregation expressions.
func (s *Store) MergeDoc(ctx context.Context, collection, id string, fields map[string]any) (db.Row, error) {
	set := make(bson.D, 0, len(fields)+1)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if k == fieldID || k == fieldRev {
			continue
		}
		set = append(set, bson.E{Key: k, Value: bson.D{{Key: "$literal", Value: fields[k]}}})
	}
	set = append(set, bson.E{Key: fieldRev, Value: nextRevExpr()})

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var raw bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(ctx,
		bson.D{{Key: fieldID, Value: id}},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		opts,
	).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return db.Row{}, db.ErrNotFound
	}
	if err != nil {
		return db.Row{}, &db.Error{Op: db.OpPut, Err: fmt.Errorf("merge: %w", err)}
	}
	return decodeRow(raw)
}

// nextRevExpr computes db.NextRev server-side: the generation of the stored
// _rev plus one, a dash and a random suffix. A missing _rev counts as 0.
func nextRevExpr() bson.D {
	gen := bson.D{{Key: "$toInt", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{
		bson.D{{Key: "$split", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$" + fieldRev, "0-"}}},
			"-",
		}}},
		0,
	}}}}}
	suffix := "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return bson.D{{Key: "$concat", Value: bson.A{
		bson.D{{Key: "$toString", Value: bson.D{{Key: "$add", Value: bson.A{gen, 1}}}}},
		suffix,
	}}}
}
