package search

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/backsync/internal/domain"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/record"
	"github.com/kailas-cloud/backsync/internal/domain/search/page"
	"github.com/kailas-cloud/backsync/internal/domain/search/result"
)

const (
	// DefaultHardLimit caps the number of matches one search may hold in memory.
	DefaultHardLimit = 10000
	// DefaultPageSize is the per-request row limit when the caller sets none.
	DefaultPageSize = 1000
	// Unbounded disables the hard limit or the request budget.
	Unbounded = -1
)

// minPageSize keeps a continuation page from holding only the overlap row.
const minPageSize = 2

// Options are the per-call search parameters.
type Options struct {
	// Query is the raw filter object, possibly carrying $sort, $skip and $limit.
	Query map[string]any
	// PageSize overrides the service page size for this call.
	PageSize int
	// MaxRequests overrides the service request budget for this call.
	MaxRequests int
	// Info asks for the metadata-wrapped result shape. The engine only carries it.
	Info bool
	// Extra is passed to every page request unchanged.
	Extra map[string]string
}

// ScanState is the cursor and accumulation of one Search call.
type ScanState struct {
	StartKey   string
	LastSeenID string
	Requests   int
	Scanned    int
	Total      int
	Offset     int
	Acc        []record.Record
}

// Service runs filtered, sorted searches over page-returning backends.
type Service struct {
	pages       PageReader
	codec       record.Codec
	hardLimit   int
	maxRequests int
	pageSize    int
	observer    Observer
}

// Option configures a Service.
type Option func(*Service)

// WithHardLimit sets the accumulation ceiling. Unbounded (-1) disables it; 0 keeps the default.
func WithHardLimit(n int) Option {
	return func(s *Service) {
		if n != 0 {
			s.hardLimit = n
		}
	}
}

// WithMaxRequests caps page requests per search. 0 or Unbounded means no cap.
func WithMaxRequests(n int) Option {
	return func(s *Service) { s.maxRequests = n }
}

// WithPageSize sets the default rows per page request.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithObserver registers an observer for page request events.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithCodec overrides the codec used to normalize raw rows.
func WithCodec(c record.Codec) Option {
	return func(s *Service) { s.codec = c }
}

// New creates a search service.
func New(pages PageReader, opts ...Option) *Service {
	s := &Service{
		pages:     pages,
		codec:     record.CouchCodec,
		hardLimit: DefaultHardLimit,
		pageSize:  DefaultPageSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search streams pages of collection, filters them, and applies sort, skip
// and limit. Sorted queries scan to exhaustion; unsorted queries stop as soon
// as skip+limit matches are held. A missing collection or an id range that
// can match nothing yields an empty result.
func (s *Service) Search(ctx context.Context, collection string, opts Options) (*result.Result, error) {
	q, err := query.Parse(opts.Query)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	base := query.ToScanParams(q.Filter)
	base.Limit = s.pageSizeFor(opts)
	base.Extra = opts.Extra
	maxRequests := s.maxRequests
	if opts.MaxRequests != 0 {
		maxRequests = opts.MaxRequests
	}

	st := &ScanState{StartKey: base.StartKey, Total: -1, Offset: -1}
	window := q.Window()
	unsorted := q.Sort.IsZero()
	if base.IsEmptyRange() {
		return s.finalize(st, q), nil
	}

	for {
		if unsorted && window >= 0 && len(st.Acc) >= window {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search canceled after %d requests: %w", st.Requests, err)
		}

		params := base
		params.StartKey = st.StartKey
		pg, err := s.pages.FetchPage(ctx, collection, params)
		st.Requests++
		if err != nil {
			s.notify(ctx, collection, st, params, nil, err)
			if errors.Is(err, domain.ErrNotFound) {
				st.Acc = nil
				break
			}
			return nil, fmt.Errorf("fetch page %d: %w", st.Requests, err)
		}

		fresh := s.merge(st, q, pg)
		s.notify(ctx, collection, st, params, pg, nil)

		if unsorted && window >= 0 && len(st.Acc) > window {
			st.Acc = st.Acc[:window]
		}
		if s.hardLimit >= 0 && len(st.Acc) > s.hardLimit {
			return nil, &domain.OverLimitError{Limit: s.hardLimit, Accumulated: len(st.Acc)}
		}

		if fresh == 0 || !pg.HasMore || params.IsKeyList() {
			break
		}
		if maxRequests > 0 && st.Requests >= maxRequests {
			break
		}
		st.StartKey = st.LastSeenID
	}

	return s.finalize(st, q), nil
}

// merge folds one page into the scan state and returns the number of rows
// that were new to this scan.
func (s *Service) merge(st *ScanState, q query.Query, pg *page.Page) int {
	rows := pg.Rows
	if len(rows) > 0 && st.LastSeenID != "" && rows[0].ID == st.LastSeenID {
		rows = rows[1:]
	}
	if last := pg.LastID(); last != "" {
		st.LastSeenID = last
	}
	st.Scanned += len(rows)
	st.Total, st.Offset = pg.Total, pg.Offset

	for _, row := range rows {
		rec := s.codec.Normalize(row.Raw)
		if rec.ID == "" {
			rec.ID = row.ID
		}
		if q.Filter.Matches(rec) {
			st.Acc = append(st.Acc, rec)
		}
	}
	return len(rows)
}

func (s *Service) finalize(st *ScanState, q query.Query) *result.Result {
	recs := st.Acc
	if !q.Sort.IsZero() {
		field, desc := q.Sort.Field, q.Sort.Desc
		slices.SortStableFunc(recs, func(a, b record.Record) int {
			av, aok := query.Lookup(a, field)
			bv, bok := query.Lookup(b, field)
			c := query.SortCompare(av, aok, bv, bok)
			if desc {
				return -c
			}
			return c
		})
	}

	skip := min(q.Skip, len(recs))
	recs = recs[skip:]
	if q.HasLimit && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	if recs == nil {
		recs = []record.Record{}
	}

	r := result.New(recs, result.Meta{
		Total:        st.Total,
		Offset:       st.Offset,
		ScannedCount: st.Scanned,
		RequestCount: st.Requests,
		LastID:       st.LastSeenID,
	})
	return &r
}

func (s *Service) pageSizeFor(opts Options) int {
	n := opts.PageSize
	if n <= 0 {
		n = s.pageSize
	}
	return max(n, minPageSize)
}

func (s *Service) notify(
	ctx context.Context, collection string, st *ScanState,
	params query.ScanParams, pg *page.Page, err error,
) {
	if s.observer == nil {
		return
	}
	ev := RequestEvent{
		Collection: collection,
		Requests:   st.Requests,
		Scanned:    st.Scanned,
		Params:     params,
		Err:        err,
	}
	if pg != nil {
		ev.Source = pg.Source
		ev.Rows = len(pg.Rows)
		ev.Body = pg.Body
	}
	s.observer.OnPageRequest(ctx, ev)
}
