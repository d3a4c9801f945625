package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/domain"
	"github.com/kailas-cloud/backsync/internal/domain/search/result"
	"github.com/kailas-cloud/backsync/internal/metrics"
)

// Searcher is the search contract consumed by transports.
type Searcher interface {
	Search(ctx context.Context, collection string, opts Options) (*result.Result, error)
}

// Instrumented wraps a Searcher with outcome metrics and logging.
// Per-page instrumentation lives in the observers.
type Instrumented struct {
	inner  Searcher
	logger *zap.Logger
}

// NewInstrumented wraps a searcher with observability.
func NewInstrumented(inner Searcher, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, logger: logger}
}

// Search delegates to the inner searcher and records the outcome.
func (i *Instrumented) Search(ctx context.Context, collection string, opts Options) (*result.Result, error) {
	start := time.Now()
	res, err := i.inner.Search(ctx, collection, opts)
	duration := time.Since(start)

	outcome := outcomeOf(err)
	metrics.SearchesTotal.WithLabelValues(collection, outcome).Inc()

	if err != nil {
		log := i.logger.Info
		if outcome == "error" {
			log = i.logger.Error
		}
		log("Search failed",
			zap.String("collection", collection),
			zap.String("outcome", outcome),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	meta := res.Meta()
	metrics.SearchRequestsPerSearch.WithLabelValues(collection).Observe(float64(meta.RequestCount))
	i.logger.Debug("Search completed",
		zap.String("collection", collection),
		zap.Duration("duration", duration),
		zap.Int("results", res.Len()),
		zap.Int("scanned", meta.ScannedCount),
		zap.Int("requests", meta.RequestCount),
	)
	return res, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrOverLimit):
		return "over_limit"
	case errors.Is(err, domain.ErrInvalidQuery):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
