package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	dombatch "github.com/kailas-cloud/backsync/internal/domain/batch"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

type batchUpsertRequest struct {
	Documents []map[string]any `json:"documents"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type batchResultItem struct {
	ID     string         `json:"id"`
	Rev    string         `json:"rev,omitempty"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// BatchUpsert handles POST /collections/{collection}/documents/_batch.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "batch writes are disabled")
		return
	}

	var req batchUpsertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if n := len(req.Documents); n == 0 || n > s.batch.MaxBatchSize() {
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			fmt.Sprintf("documents count must be between 1 and %d", s.batch.MaxBatchSize()))
		return
	}

	items := make([]record.Record, len(req.Documents))
	for i, d := range req.Documents {
		items[i] = record.FromMap(d)
	}

	results := s.batch.Upsert(r.Context(), chi.URLParam(r, "collection"), items)
	writeJSON(w, http.StatusOK, toBatchResponse(results))
}

// BatchDelete handles DELETE /collections/{collection}/documents/_batch.
func (s *Server) BatchDelete(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "batch writes are disabled")
		return
	}

	var req batchDeleteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if n := len(req.IDs); n == 0 || n > s.batch.MaxBatchSize() {
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			fmt.Sprintf("ids count must be between 1 and %d", s.batch.MaxBatchSize()))
		return
	}

	results := s.batch.Delete(r.Context(), chi.URLParam(r, "collection"), req.IDs)
	writeJSON(w, http.StatusOK, toBatchResponse(results))
}

func toBatchResponse(results []dombatch.Result) batchResponse {
	resp := batchResponse{Items: make([]batchResultItem, len(results))}
	for i, res := range results {
		item := batchResultItem{ID: res.ID(), Rev: res.Rev(), Status: string(res.Status())}
		if err := res.Err(); err != nil {
			item.Error = &ErrorResponse{Code: batchErrorCode(err), Message: safeDomainMessage(err)}
		}
		resp.Items[i] = item
	}
	resp.Failed = dombatch.Failed(results)
	resp.Succeeded = len(results) - resp.Failed
	return resp
}
