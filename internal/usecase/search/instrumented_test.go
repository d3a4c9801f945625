package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/backsync/internal/domain"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/search/result"
	"github.com/kailas-cloud/backsync/internal/logger"
	"github.com/kailas-cloud/backsync/internal/metrics"
)

type searcherFunc func(ctx context.Context, collection string, opts Options) (*result.Result, error)

func (f searcherFunc) Search(ctx context.Context, collection string, opts Options) (*result.Result, error) {
	return f(ctx, collection, opts)
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&domain.OverLimitError{Limit: 1, Accumulated: 2}, "over_limit"},
		{domain.NewValidation("$sort", "bad"), "invalid"},
		{fmt.Errorf("search canceled: %w", context.Canceled), "canceled"},
		{fmt.Errorf("search canceled: %w", context.DeadlineExceeded), "canceled"},
		{errors.New("connection reset"), "error"},
	}
	for _, tc := range tests {
		if got := outcomeOf(tc.err); got != tc.want {
			t.Errorf("outcomeOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestInstrumented_Success(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	coll := "instr-ok"
	inner := searcherFunc(func(context.Context, string, Options) (*result.Result, error) {
		r := result.New(nil, result.Meta{RequestCount: 3, ScannedCount: 7})
		return &r, nil
	})

	before := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(coll, "ok"))
	res, err := NewInstrumented(inner, zap.New(core)).Search(context.Background(), coll, Options{})
	if err != nil || res == nil {
		t.Fatalf("unexpected result %v, %v", res, err)
	}

	if got := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(coll, "ok")) - before; got != 1 {
		t.Errorf("searches_total{ok} grew by %f, want 1", got)
	}
	entries := logs.FilterMessage("Search completed").All()
	if len(entries) != 1 || entries[0].ContextMap()["requests"] != int64(3) {
		t.Errorf("unexpected log entries %+v", logs.All())
	}
}

func TestInstrumented_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
		level   zapcore.Level
	}{
		{"over limit", &domain.OverLimitError{Limit: 1, Accumulated: 2}, "over_limit", zapcore.InfoLevel},
		{"backend down", errors.New("dial tcp: refused"), "error", zapcore.ErrorLevel},
		{"deadline", fmt.Errorf("fetch page 2: %w", context.DeadlineExceeded), "canceled", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			coll := "instr-" + tc.outcome
			inner := searcherFunc(func(context.Context, string, Options) (*result.Result, error) {
				return nil, tc.err
			})

			before := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(coll, tc.outcome))
			_, err := NewInstrumented(inner, zap.New(core)).Search(context.Background(), coll, Options{})
			if !errors.Is(err, tc.err) {
				t.Fatalf("error not passed through: %v", err)
			}
			if got := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(coll, tc.outcome)) - before; got != 1 {
				t.Errorf("searches_total{%s} grew by %f, want 1", tc.outcome, got)
			}
			entries := logs.FilterMessage("Search failed").All()
			if len(entries) != 1 || entries[0].Level != tc.level {
				t.Errorf("unexpected log entries %+v", logs.All())
			}
		})
	}
}

func TestObservers_FanOutInOrder(t *testing.T) {
	var order []string
	obs := Observers{
		observerFunc(func(context.Context, RequestEvent) { order = append(order, "first") }),
		observerFunc(func(context.Context, RequestEvent) { order = append(order, "second") }),
	}
	obs.OnPageRequest(context.Background(), RequestEvent{})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

type observerFunc func(ctx context.Context, ev RequestEvent)

func (f observerFunc) OnPageRequest(ctx context.Context, ev RequestEvent) { f(ctx, ev) }

func TestLogObserver_PrefersContextLogger(t *testing.T) {
	ownCore, ownLogs := observer.New(zapcore.DebugLevel)
	ctxCore, ctxLogs := observer.New(zapcore.DebugLevel)
	o := LogObserver{Logger: zap.New(ownCore)}

	ev := RequestEvent{Collection: "users", Requests: 2, Rows: 5, Params: query.ScanParams{StartKey: "k", Limit: 5}}
	o.OnPageRequest(context.Background(), ev)
	o.OnPageRequest(logger.ContextWithLogger(context.Background(), zap.New(ctxCore)), ev)

	if ownLogs.Len() != 1 || ctxLogs.Len() != 1 {
		t.Fatalf("own=%d ctx=%d, want 1 each", ownLogs.Len(), ctxLogs.Len())
	}
	entry := ctxLogs.All()[0]
	if entry.Level != zapcore.DebugLevel || entry.ContextMap()["start_key"] != "k" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestLogObserver_WarnsOnError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	LogObserver{Logger: zap.New(core)}.OnPageRequest(context.Background(),
		RequestEvent{Collection: "users", Err: errors.New("timeout")})

	entries := logs.FilterMessage("Page request failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Errorf("unexpected entries %+v", logs.All())
	}
}

func TestMetricsObserver(t *testing.T) {
	coll := "metrics-observer"
	okBefore := testutil.ToFloat64(metrics.ScanPageRequestsTotal.WithLabelValues(coll, "ok"))
	errBefore := testutil.ToFloat64(metrics.ScanPageRequestsTotal.WithLabelValues(coll, "error"))

	var o MetricsObserver
	o.OnPageRequest(context.Background(), RequestEvent{Collection: coll, Rows: 10})
	o.OnPageRequest(context.Background(), RequestEvent{Collection: coll, Err: errors.New("x")})

	if got := testutil.ToFloat64(metrics.ScanPageRequestsTotal.WithLabelValues(coll, "ok")) - okBefore; got != 1 {
		t.Errorf("ok requests grew by %f, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ScanPageRequestsTotal.WithLabelValues(coll, "error")) - errBefore; got != 1 {
		t.Errorf("error requests grew by %f, want 1", got)
	}
}
