// Package document adapts a db backend to the use cases: it normalizes wire
// documents, generates ids and translates backend errors into domain errors.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/record"
	"github.com/kailas-cloud/backsync/internal/domain/search/page"
)

// store is the consumer interface for documents (ISP).
type store interface {
	FetchPage(ctx context.Context, collection string, p query.ScanParams) (*db.Page, error)
	GetDoc(ctx context.Context, collection, id string) (db.Row, error)
	PutDoc(ctx context.Context, collection, id, rev string, doc map[string]any) (string, error)
	DeleteDoc(ctx context.Context, collection, id, rev string) error
}

// Repo implements usecase/document.Repository and usecase/search.PageReader.
type Repo struct {
	store    store
	codec    record.Codec
	newID    func() string
	createDB bool
}

// Option configures a Repo.
type Option func(*Repo)

// WithCreateDB makes writes against a missing database create it and retry once.
// Only backends implementing db.DatabaseCreator are affected.
func WithCreateDB(enabled bool) Option {
	return func(r *Repo) { r.createDB = enabled }
}

// WithIDGenerator overrides id generation for created records.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repo) { r.newID = fn }
}

// New creates a document repository.
func New(s store, opts ...Option) *Repo {
	r := &Repo{store: s, codec: record.CouchCodec, newID: NewID}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FetchPage reads one raw page. A missing collection is domain.ErrNotFound.
func (r *Repo) FetchPage(ctx context.Context, collection string, p query.ScanParams) (*page.Page, error) {
	pg, err := r.store.FetchPage(ctx, collection, p)
	if err != nil {
		return nil, translate(err)
	}

	rows := make([]page.Row, len(pg.Rows))
	for i, row := range pg.Rows {
		rows[i] = page.Row{ID: row.ID, Raw: row.Doc}
	}
	return &page.Page{
		Rows:    rows,
		Total:   pg.Total,
		Offset:  pg.Offset,
		HasMore: pg.HasMore,
		Source:  pg.Source,
		Body:    pg.Raw,
	}, nil
}

// Get returns a normalized record.
func (r *Repo) Get(ctx context.Context, collection, id string) (record.Record, error) {
	row, err := r.store.GetDoc(ctx, collection, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return record.Record{}, domain.NewNotFound(id)
		}
		return record.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, translate(err))
	}
	rec := r.codec.Normalize(row.Doc)
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.Rev == "" {
		rec.Rev = row.Rev
	}
	return rec, nil
}

// Create stores a new record, generating an id when rec has none.
func (r *Repo) Create(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	if rec.ID == "" {
		rec.ID = r.newID()
	}
	return r.put(ctx, collection, rec, "")
}

// Replace writes rec over the revision rec.Rev. An empty rev creates the record.
func (r *Repo) Replace(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	return r.put(ctx, collection, rec, rec.Rev)
}

// Delete removes a record. An empty rev removes whatever revision is current.
func (r *Repo) Delete(ctx context.Context, collection, id, rev string) error {
	if err := r.store.DeleteDoc(ctx, collection, id, rev); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return domain.NewNotFound(id)
		}
		return fmt.Errorf("delete %s/%s: %w", collection, id, translate(err))
	}
	return nil
}

// Merge applies attrs to the stored record in one backend operation.
// Backends without db.Merger yield domain.ErrNotImplemented.
func (r *Repo) Merge(ctx context.Context, collection, id string, attrs map[string]any) (record.Record, error) {
	m, ok := r.store.(db.Merger)
	if !ok {
		return record.Record{}, domain.ErrNotImplemented
	}

	row, err := m.MergeDoc(ctx, collection, id, r.codec.Denormalize(record.Record{Fields: attrs}))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return record.Record{}, domain.NewNotFound(id)
		}
		return record.Record{}, fmt.Errorf("merge %s/%s: %w", collection, id, translate(err))
	}
	rec := r.codec.Normalize(row.Doc)
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.Rev == "" {
		rec.Rev = row.Rev
	}
	return rec, nil
}

func (r *Repo) put(ctx context.Context, collection string, rec record.Record, rev string) (record.Record, error) {
	payload := r.codec.Denormalize(rec)

	newRev, err := r.store.PutDoc(ctx, collection, rec.ID, rev, payload)
	if err != nil && r.createDB && errors.Is(err, db.ErrDatabaseMissing) {
		if cerr := r.createDatabase(ctx, collection); cerr != nil {
			return record.Record{}, cerr
		}
		newRev, err = r.store.PutDoc(ctx, collection, rec.ID, rev, payload)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("put %s/%s: %w", collection, rec.ID, translate(err))
	}

	out := record.New(rec.ID, newRev, payload)
	return out, nil
}

func (r *Repo) createDatabase(ctx context.Context, collection string) error {
	creator, ok := r.store.(db.DatabaseCreator)
	if !ok {
		return fmt.Errorf("create database %s: %w", collection, domain.ErrNotImplemented)
	}
	if err := creator.CreateDatabase(ctx, collection); err != nil && !errors.Is(err, db.ErrDatabaseExists) {
		return fmt.Errorf("create database %s: %w", collection, err)
	}
	return nil
}

// translate maps backend sentinels onto domain sentinels, keeping the original in the chain.
func translate(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, db.ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}
