package backsync

import (
	"context"

	"github.com/kailas-cloud/backsync/internal/app"
	dombatch "github.com/kailas-cloud/backsync/internal/domain/batch"
	"github.com/kailas-cloud/backsync/internal/domain/record"
	searchuc "github.com/kailas-cloud/backsync/internal/usecase/search"
)

// Collection is a handle for one collection of a Client.
type Collection struct {
	name string
	app  *app.App
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// SearchOption tunes a single Search call.
type SearchOption func(*searchuc.Options)

// RequestLimit overrides the rows requested per backend page.
func RequestLimit(n int) SearchOption {
	return func(o *searchuc.Options) { o.PageSize = n }
}

// MaxRequests overrides the backend request budget of the call.
func MaxRequests(n int) SearchOption {
	return func(o *searchuc.Options) { o.MaxRequests = n }
}

// Extra passes backend-specific parameters with every page request.
func Extra(params map[string]string) SearchOption {
	return func(o *searchuc.Options) { o.Extra = params }
}

// Search scans the collection page by page and returns the documents
// matching q, ordered by "$sort" (id order otherwise) and windowed by
// "$skip" and "$limit".
func (c *Collection) Search(ctx context.Context, q Query, opts ...SearchOption) (*Result, error) {
	so := searchuc.Options{Query: q}
	for _, o := range opts {
		o(&so)
	}

	res, err := c.app.Search.Search(ctx, c.name, so)
	if err != nil {
		return nil, err
	}
	return fromResult(res), nil
}

// Get returns the document with the given id.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	rec, err := c.app.Documents.Get(ctx, c.name, id)
	if err != nil {
		return Document{}, err
	}
	return fromRecord(rec), nil
}

// Create stores a new document. An "id" key in fields is used as the
// identifier; without one an id is generated.
func (c *Collection) Create(ctx context.Context, fields map[string]any) (Document, error) {
	rec, err := c.app.Documents.Create(ctx, c.name, record.FromMap(fields))
	if err != nil {
		return Document{}, err
	}
	return fromRecord(rec), nil
}

// Update replaces the document at doc.Rev. On a revision conflict the
// current revision is re-read and the write retried, bounded by
// WithMaxConflictRetries.
func (c *Collection) Update(ctx context.Context, doc Document) (Document, error) {
	rec, err := c.app.Documents.Update(ctx, c.name, toRecord(doc))
	if err != nil {
		return Document{}, err
	}
	return fromRecord(rec), nil
}

// Patch merges attrs into the current document.
func (c *Collection) Patch(ctx context.Context, id string, attrs map[string]any) (Document, error) {
	rec, err := c.app.Documents.Patch(ctx, c.name, id, attrs)
	if err != nil {
		return Document{}, err
	}
	return fromRecord(rec), nil
}

// Delete removes the document. An empty rev deletes the current revision.
func (c *Collection) Delete(ctx context.Context, id, rev string) error {
	return c.app.Documents.Delete(ctx, c.name, id, rev)
}

// BatchResult is the outcome of one item of a batch write.
type BatchResult struct {
	ID  string
	Rev string
	Err error
}

// UpsertMany writes documents one by one and reports each outcome. A
// document with an id but no rev replaces the current revision if the id
// is taken. At most the configured batch size is accepted per call.
func (c *Collection) UpsertMany(ctx context.Context, docs []Document) []BatchResult {
	recs := make([]record.Record, len(docs))
	for i, d := range docs {
		recs[i] = toRecord(d)
	}
	return fromBatch(c.app.Batch.Upsert(ctx, c.name, recs))
}

// DeleteMany removes documents by id at their current revisions.
func (c *Collection) DeleteMany(ctx context.Context, ids []string) []BatchResult {
	return fromBatch(c.app.Batch.Delete(ctx, c.name, ids))
}

func fromBatch(rs []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(rs))
	for i, r := range rs {
		out[i] = BatchResult{ID: r.ID(), Rev: r.Rev(), Err: r.Err()}
	}
	return out
}
