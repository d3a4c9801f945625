// Package batch applies writes to many documents with per-item error reporting.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/backsync/internal/domain"
	dombatch "github.com/kailas-cloud/backsync/internal/domain/batch"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// MaxBatchSize is the maximum number of items per batch request.
const MaxBatchSize = 100

// Service handles batch document operations with per-item error reporting.
type Service struct {
	docs         DocumentWriter
	maxBatchSize int
}

// New creates a batch service.
func New(docs DocumentWriter) *Service {
	return &Service{docs: docs, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// MaxBatchSize returns the configured maximum batch size.
func (s *Service) MaxBatchSize() int { return s.maxBatchSize }

// Upsert creates or replaces documents one by one.
//
// An item without id is created under a generated id. An item with a rev
// replaces that revision. An item with an id but no rev is created, or
// replaces the current revision when the id is taken.
func (s *Service) Upsert(ctx context.Context, collection string, items []record.Record) []dombatch.Result {
	if err := s.checkSize(len(items)); err != nil {
		return failAll(items, func(r record.Record) string { return r.ID }, err)
	}

	results := make([]dombatch.Result, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			fillRemaining(results[i:], items[i:], err)
			return results
		}

		out, err := s.upsertOne(ctx, collection, item)
		if err != nil {
			results[i] = dombatch.NewError(item.ID, err)
			continue
		}
		results[i] = dombatch.NewOK(out.ID, out.Rev)
	}
	return results
}

func (s *Service) upsertOne(ctx context.Context, collection string, item record.Record) (record.Record, error) {
	switch {
	case item.ID == "":
		return s.create(ctx, collection, item)
	case item.Rev != "":
		return s.update(ctx, collection, item)
	}

	out, err := s.create(ctx, collection, item)
	if !errors.Is(err, domain.ErrConflict) {
		return out, err
	}

	cur, err := s.docs.Get(ctx, collection, item.ID)
	if err != nil {
		return record.Record{}, fmt.Errorf("read existing: %w", err)
	}
	item.Rev = cur.Rev
	return s.update(ctx, collection, item)
}

func (s *Service) create(ctx context.Context, collection string, item record.Record) (record.Record, error) {
	out, err := s.docs.Create(ctx, collection, item)
	if err != nil {
		return record.Record{}, fmt.Errorf("create: %w", err)
	}
	return out, nil
}

func (s *Service) update(ctx context.Context, collection string, item record.Record) (record.Record, error) {
	out, err := s.docs.Update(ctx, collection, item)
	if err != nil {
		return record.Record{}, fmt.Errorf("update: %w", err)
	}
	return out, nil
}

// Delete removes documents by id in batch, each at its current revision.
func (s *Service) Delete(ctx context.Context, collection string, ids []string) []dombatch.Result {
	if err := s.checkSize(len(ids)); err != nil {
		return failAll(ids, func(id string) string { return id }, err)
	}

	results := make([]dombatch.Result, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(ids); j++ {
				results[j] = dombatch.NewError(ids[j], err)
			}
			return results
		}
		if err := s.docs.Delete(ctx, collection, id, ""); err != nil {
			results[i] = dombatch.NewError(id, fmt.Errorf("delete: %w", err))
			continue
		}
		results[i] = dombatch.NewOK(id, "")
	}
	return results
}

func (s *Service) checkSize(n int) error {
	if n > s.maxBatchSize {
		return domain.NewValidation("batch", fmt.Sprintf("size %d exceeds %d", n, s.maxBatchSize))
	}
	return nil
}

func failAll[T any](items []T, id func(T) string, err error) []dombatch.Result {
	results := make([]dombatch.Result, len(items))
	for i, item := range items {
		results[i] = dombatch.NewError(id(item), err)
	}
	return results
}

func fillRemaining(results []dombatch.Result, items []record.Record, err error) {
	for i, item := range items {
		results[i] = dombatch.NewError(item.ID, err)
	}
}
