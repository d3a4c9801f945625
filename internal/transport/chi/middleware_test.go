package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/backsync/internal/logger"
)

func TestJSONRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := JSONRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if e := decodeError(t, rr.Body.Bytes()); e.Code != CodeInternal {
		t.Errorf("code = %q", e.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic was not logged")
	}
}

func TestWideEvent_LogsRequestAndScopesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	var scoped bool
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(zap.New(core)))
	r.Get("/collections/{collection}/documents", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside")
		scoped = true
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/collections/users/documents", http.NoBody))

	if !scoped {
		t.Fatal("handler not called")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	inside := logs.FilterMessage("inside").All()
	if len(inside) != 1 || inside[0].ContextMap()["request_id"] == "" {
		t.Errorf("handler logger not request-scoped: %v", inside)
	}

	lines := logs.FilterMessage("http_request").All()
	if len(lines) != 1 {
		t.Fatalf("http_request lines = %d, want 1", len(lines))
	}
	fields := lines[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) || fields["collection"] != "users" {
		t.Errorf("unexpected fields %v", fields)
	}
}
