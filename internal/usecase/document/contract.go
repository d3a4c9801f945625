package document

import (
	"context"

	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// Repository defines the storage contract for records.
type Repository interface {
	Get(ctx context.Context, collection, id string) (record.Record, error)
	Create(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	Replace(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	Delete(ctx context.Context, collection, id, rev string) error
}

// Merger is implemented by repositories whose backend applies a patch in a
// single atomic operation. Merge returns domain.ErrNotImplemented when the
// backend cannot, and Patch falls back to read-merge-replace.
type Merger interface {
	Merge(ctx context.Context, collection, id string, attrs map[string]any) (record.Record, error)
}
