// Package chi exposes CRUD and search over HTTP using the chi router.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/domain"
	dombatch "github.com/kailas-cloud/backsync/internal/domain/batch"
	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/record"
	"github.com/kailas-cloud/backsync/internal/logger"
	healthuc "github.com/kailas-cloud/backsync/internal/usecase/health"
	searchuc "github.com/kailas-cloud/backsync/internal/usecase/search"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// DocumentService is the record CRUD contract.
type DocumentService interface {
	Create(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	Get(ctx context.Context, collection, id string) (record.Record, error)
	Update(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	Patch(ctx context.Context, collection, id string, attrs map[string]any) (record.Record, error)
	Delete(ctx context.Context, collection, id, rev string) error
}

// HealthChecker reports backend readiness.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// BatchService applies writes to many documents at once.
type BatchService interface {
	Upsert(ctx context.Context, collection string, items []record.Record) []dombatch.Result
	Delete(ctx context.Context, collection string, ids []string) []dombatch.Result
	MaxBatchSize() int
}

// Server holds the HTTP handlers.
type Server struct {
	documents     DocumentService
	batch         BatchService
	search        searchuc.Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents DocumentService,
	search searchuc.Searcher,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		documents:     documents,
		search:        search,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithBatch enables the batch endpoints.
func (s *Server) WithBatch(b BatchService) *Server {
	s.batch = b
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/collections/{collection}", func(r chi.Router) {
		r.Post("/_search", s.SearchDocuments)
		r.Get("/documents", s.ListDocuments)
		r.Post("/documents", s.CreateDocument)
		r.Post("/documents/_batch", s.BatchUpsert)
		r.Delete("/documents/_batch", s.BatchDelete)
		r.Get("/documents/{id}", s.GetDocument)
		r.Put("/documents/{id}", s.UpdateDocument)
		r.Patch("/documents/{id}", s.PatchDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
	})
}

// searchRequest is the body of POST /collections/{collection}/_search.
// Reserved keys may also sit inside Filter; top-level values win.
type searchRequest struct {
	Filter       map[string]any `json:"filter"`
	Sort         any            `json:"$sort"`
	Skip         any            `json:"$skip"`
	Limit        any            `json:"$limit"`
	Info         bool           `json:"info"`
	RequestLimit int            `json:"request_limit"`
	MaxRequests  int            `json:"max_requests"`
}

// SearchDocuments handles POST /collections/{collection}/_search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q := make(map[string]any, len(req.Filter)+3)
	for k, v := range req.Filter {
		q[k] = v
	}
	for k, v := range map[string]any{query.KeySort: req.Sort, query.KeySkip: req.Skip, query.KeyLimit: req.Limit} {
		if v != nil {
			q[k] = v
		}
	}

	s.runSearch(w, r, searchuc.Options{
		Query:       q,
		PageSize:    req.RequestLimit,
		MaxRequests: req.MaxRequests,
		Info:        req.Info,
	})
}

// ListDocuments handles GET /collections/{collection}/documents.
// The filter travels JSON-encoded in ?filter=; $sort, $skip and $limit are plain params.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := map[string]any{}
	if raw := params.Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidQuery, "filter must be a JSON object: "+err.Error())
			return
		}
	}
	for _, k := range []string{query.KeySort, query.KeySkip, query.KeyLimit} {
		if v := params.Get(k); v != "" {
			q[k] = v
		}
	}

	opts := searchuc.Options{Query: q}
	var err error
	if opts.Info, err = boolParam(params, "info"); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if opts.PageSize, err = intParam(params, "request_limit"); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if opts.MaxRequests, err = intParam(params, "max_requests"); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	s.runSearch(w, r, opts)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, opts searchuc.Options) {
	res, err := s.search.Search(r.Context(), chi.URLParam(r, "collection"), opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Shape(opts.Info))
}

// CreateDocument handles POST /collections/{collection}/documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	collection := chi.URLParam(r, "collection")
	rec, err := s.documents.Create(r.Context(), collection, record.FromMap(body))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/collections/%s/documents/%s",
		url.PathEscape(collection), url.PathEscape(rec.ID)))
	setETag(w, rec.Rev)
	writeJSON(w, http.StatusCreated, rec.Map())
}

// GetDocument handles GET /collections/{collection}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := s.documents.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setETag(w, rec.Rev)
	writeJSON(w, http.StatusOK, rec.Map())
}

// UpdateDocument handles PUT /collections/{collection}/documents/{id}.
// The revision comes from the body's "rev" or the If-Match header.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec := record.FromMap(body)
	rec.ID = chi.URLParam(r, "id")
	if rec.Rev == "" {
		rec.Rev = ifMatch(r)
	}

	out, err := s.documents.Update(r.Context(), chi.URLParam(r, "collection"), rec)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setETag(w, out.Rev)
	writeJSON(w, http.StatusOK, out.Map())
}

// PatchDocument handles PATCH /collections/{collection}/documents/{id}.
func (s *Server) PatchDocument(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]any
	if err := decodeBody(w, r, &attrs); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	out, err := s.documents.Patch(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), attrs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setETag(w, out.Rev)
	writeJSON(w, http.StatusOK, out.Map())
}

// DeleteDocument handles DELETE /collections/{collection}/documents/{id}.
// The revision comes from ?rev= or If-Match; without one the current revision is deleted.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	rev := r.URL.Query().Get("rev")
	if rev == "" {
		rev = ifMatch(r)
	}

	if err := s.documents.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), rev); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logger.FromContextOr(r.Context(), s.logger)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err //nolint:wrapcheck // message goes to the client as is
	}
	return nil
}

func setETag(w http.ResponseWriter, rev string) {
	if rev != "" {
		w.Header().Set("ETag", strconv.Quote(rev))
	}
}

func ifMatch(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	if unq, err := strconv.Unquote(v); err == nil {
		return unq
	}
	return v
}

func intParam(params url.Values, name string) (int, error) {
	v := params.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.NewValidation(name, "must be an integer")
	}
	return n, nil
}

func boolParam(params url.Values, name string) (bool, error) {
	v := params.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.NewValidation(name, "must be a boolean")
	}
	return b, nil
}
