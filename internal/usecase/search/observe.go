package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/logger"
	"github.com/kailas-cloud/backsync/internal/metrics"
)

// RequestEvent describes one page request of a running search.
type RequestEvent struct {
	Collection string
	// Requests and Scanned are the running totals including this request.
	Requests int
	Scanned  int
	Source   string
	Params   query.ScanParams
	// Rows is the raw row count of the page, before de-duplication and filtering.
	Rows int
	Body []byte
	Err  error
}

// Observers fans an event out to several observers in order.
type Observers []Observer

// OnPageRequest implements Observer.
func (os Observers) OnPageRequest(ctx context.Context, ev RequestEvent) {
	for _, o := range os {
		o.OnPageRequest(ctx, ev)
	}
}

// LogObserver writes one debug line per page request to the context logger,
// falling back to its own logger.
type LogObserver struct {
	Logger *zap.Logger
}

// OnPageRequest implements Observer.
func (l LogObserver) OnPageRequest(ctx context.Context, ev RequestEvent) {
	log := logger.FromContextOr(ctx, l.Logger)

	fields := []zap.Field{
		zap.String("collection", ev.Collection),
		zap.Int("requests", ev.Requests),
		zap.Int("scanned", ev.Scanned),
		zap.Int("rows", ev.Rows),
		zap.String("source", ev.Source),
		zap.String("start_key", ev.Params.StartKey),
		zap.Int("keys", len(ev.Params.Keys)),
		zap.Int("page_size", ev.Params.Limit),
	}
	if ev.Err != nil {
		log.Warn("Page request failed", append(fields, zap.Error(ev.Err))...)
		return
	}
	log.Debug("Page request", fields...)
}

// MetricsObserver records page requests in the scan metrics.
type MetricsObserver struct{}

// OnPageRequest implements Observer.
func (MetricsObserver) OnPageRequest(_ context.Context, ev RequestEvent) {
	status := "ok"
	if ev.Err != nil {
		status = "error"
	}
	metrics.ScanPageRequestsTotal.WithLabelValues(ev.Collection, status).Inc()
	metrics.ScanPageRows.WithLabelValues(ev.Collection).Observe(float64(ev.Rows))
}
