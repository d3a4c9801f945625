// Package mongodb is a MongoDB backend. Each collection maps to a MongoDB
// collection whose documents carry their id in _id and their revision in
// _rev; the default _id index gives the ordered scan.
//
// Ids are stored as strings. BSON orders values of different types by type
// first, so documents whose _id is not a string (such as an ObjectID written
// by another client) are never part of a scan.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kailas-cloud/backsync/internal/db"
)

// Compile-time checks.
var (
	_ db.Store  = (*Store)(nil)
	_ db.Merger = (*Store)(nil)
)

// DefaultDatabase is used when the config names none.
const DefaultDatabase = "backsync"

// Config holds connection parameters for a MongoDB store.
type Config struct {
	URI      string
	Database string
	// Timeout bounds connection setup and server selection.
	Timeout time.Duration
	// PageSize bounds a range read when the scan sets no limit.
	PageSize int
}

// Store implements db.Store via the official MongoDB driver.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	pageSize int
}

// NewStore creates a MongoDB store. The driver connects lazily; use
// WaitForReady to block until the server answers.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg.Database, cfg.PageSize), nil
}

func newStore(c *mongo.Client, database string, pageSize int) *Store {
	if database == "" {
		database = DefaultDatabase
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Store{client: c, db: c.Database(database), pageSize: pageSize}
}

// NewObjectID returns a fresh ObjectID in its 24-character hex form.
// Its leading timestamp makes ids created later sort later.
func NewObjectID() string {
	return primitive.NewObjectID().Hex()
}

// Ping checks connectivity against the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for mongodb: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// decodeRow turns a stored document into a row with plain Go values.
func decodeRow(raw bson.M) (db.Row, error) {
	id, ok := raw[fieldID].(string)
	if !ok {
		return db.Row{}, &db.Error{Op: db.OpDecode, Err: fmt.Errorf("document _id %v is not a string", raw[fieldID])}
	}
	rev, _ := raw[fieldRev].(string)

	doc := make(map[string]any, len(raw))
	for k, v := range raw {
		doc[k] = plain(v)
	}
	return db.Row{ID: id, Rev: rev, Doc: doc}, nil
}

// plain converts driver value types into the types JSON decoding yields,
// so filters and sorts treat every backend's documents alike.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case int32:
		return int(t)
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	}
	return v
}
