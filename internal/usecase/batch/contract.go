package batch

import (
	"context"

	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// DocumentWriter is the single-document contract batches are built on.
type DocumentWriter interface {
	Create(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	Get(ctx context.Context, collection, id string) (record.Record, error)
	Update(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	Delete(ctx context.Context, collection, id, rev string) error
}
