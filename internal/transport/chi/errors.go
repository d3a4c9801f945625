package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/domain"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest     ErrorCode = "bad_request"
	CodeInvalidQuery   ErrorCode = "invalid_query"
	CodeNotFound       ErrorCode = "not_found"
	CodeConflict       ErrorCode = "conflict"
	CodeRetryExhausted ErrorCode = "retry_exhausted"
	CodeOverLimit      ErrorCode = "over_limit"
	CodeNotImplemented ErrorCode = "not_implemented"
	CodeInternal       ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		overLimitHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		// exhausted wraps the conflict, so it goes first
		sentinelHandler(domain.ErrRetryExhausted, http.StatusConflict, CodeRetryExhausted),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation and not-found errors describe the caller's input and pass through.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	var ol *domain.OverLimitError
	if errors.As(err, &ol) {
		return ol.Error()
	}

	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrRetryExhausted,
		domain.ErrConflict,
		domain.ErrInvalidQuery,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// overLimitHandler reports the breached ceiling alongside the message.
func overLimitHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrOverLimit) {
		return false
	}
	var ole *domain.OverLimitError
	if errors.As(err, &ole) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":        CodeOverLimit,
			"message":     msg,
			"limit":       ole.Limit,
			"accumulated": ole.Accumulated,
		})
		return true
	}
	writeError(w, http.StatusUnprocessableEntity, CodeOverLimit, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

// batchErrorCode maps a per-item error to its code.
func batchErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return CodeInvalidQuery
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrRetryExhausted):
		return CodeRetryExhausted
	case errors.Is(err, domain.ErrConflict):
		return CodeConflict
	case errors.Is(err, domain.ErrNotImplemented):
		return CodeNotImplemented
	}
	return CodeInternal
}
