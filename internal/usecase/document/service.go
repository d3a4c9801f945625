// Package document implements record CRUD on top of a revisioned store.
package document

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/domain"
	"github.com/kailas-cloud/backsync/internal/domain/record"
	"github.com/kailas-cloud/backsync/internal/logger"
	"github.com/kailas-cloud/backsync/internal/metrics"
)

// DefaultMaxConflictRetries is how many times a conflicting write is re-issued.
const DefaultMaxConflictRetries = 1

// Service handles record CRUD with bounded conflict retry.
type Service struct {
	repo       Repository
	maxRetries int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxConflictRetries sets the retry bound for conflicting writes.
// Zero disables retries; negative values are ignored.
func WithMaxConflictRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// New creates a document service.
func New(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, maxRetries: DefaultMaxConflictRetries}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new record. An id is generated when rec has none.
func (s *Service) Create(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	out, err := s.repo.Create(ctx, collection, rec)
	countWrite(collection, "create", err)
	if err != nil {
		return record.Record{}, fmt.Errorf("create record: %w", err)
	}
	return out, nil
}

// Get reads a record by id.
func (s *Service) Get(ctx context.Context, collection, id string) (record.Record, error) {
	rec, err := s.repo.Get(ctx, collection, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Update replaces a record at rec.Rev. An empty rev writes without a
// precondition, which creates the record if it does not exist. On a
// conflict the current rev is re-read and the write re-issued.
func (s *Service) Update(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	if rec.ID == "" {
		return record.Record{}, domain.NewValidation("id", "required for update")
	}
	out, err := s.withRetry(ctx, collection, rec.ID,
		func(ctx context.Context) (record.Record, error) {
			return s.repo.Replace(ctx, collection, rec)
		},
		func(cur record.Record) { rec.Rev = cur.Rev },
	)
	countWrite(collection, "update", err)
	if err != nil {
		return record.Record{}, fmt.Errorf("update record: %w", err)
	}
	return out, nil
}

// Patch merges attrs into the current record and writes it back at the rev
// that was read. A conflict re-reads and re-merges. Backends with an atomic
// merge apply attrs in one operation instead.
func (s *Service) Patch(ctx context.Context, collection, id string, attrs map[string]any) (record.Record, error) {
	if m, ok := s.repo.(Merger); ok {
		out, err := m.Merge(ctx, collection, id, attrs)
		if !errors.Is(err, domain.ErrNotImplemented) {
			countWrite(collection, "patch", err)
			if err != nil {
				return record.Record{}, fmt.Errorf("patch record: %w", err)
			}
			return out, nil
		}
	}

	cur, err := s.repo.Get(ctx, collection, id)
	if err != nil {
		countWrite(collection, "patch", err)
		return record.Record{}, fmt.Errorf("patch record: %w", err)
	}

	out, err := s.withRetry(ctx, collection, id,
		func(ctx context.Context) (record.Record, error) {
			return s.repo.Replace(ctx, collection, cur.Merge(attrs))
		},
		func(latest record.Record) { cur = latest },
	)
	countWrite(collection, "patch", err)
	if err != nil {
		return record.Record{}, fmt.Errorf("patch record: %w", err)
	}
	return out, nil
}

// Delete removes a record. An empty rev deletes the current revision.
func (s *Service) Delete(ctx context.Context, collection, id, rev string) error {
	err := s.repo.Delete(ctx, collection, id, rev)
	countWrite(collection, "delete", err)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// withRetry runs write, and on a revision conflict re-reads the record,
// hands it to refresh and writes again, at most maxRetries times.
func (s *Service) withRetry(
	ctx context.Context,
	collection, id string,
	write func(ctx context.Context) (record.Record, error),
	refresh func(cur record.Record),
) (record.Record, error) {
	for attempt := 0; ; attempt++ {
		out, err := write(ctx)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return out, err
		}
		if attempt >= s.maxRetries {
			if s.maxRetries == 0 {
				return record.Record{}, err
			}
			return record.Record{}, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetryExhausted, attempt+1, err)
		}

		logger.FromContext(ctx).Debug("Revision conflict, retrying",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
		)
		metrics.DocumentConflictRetriesTotal.WithLabelValues(collection).Inc()

		cur, gerr := s.repo.Get(ctx, collection, id)
		if gerr != nil {
			return record.Record{}, fmt.Errorf("re-read after conflict: %w", gerr)
		}
		refresh(cur)
	}
}

func countWrite(collection, op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRetryExhausted):
		outcome = "retry_exhausted"
	case errors.Is(err, domain.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.DocumentWritesTotal.WithLabelValues(collection, op, outcome).Inc()
}
