package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/collections/{collection}", func(r chi.Router) {
		r.Get("/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{}"))
		})
		r.Delete("/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/_search", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})
	})
	return r
}

func serve(r http.Handler, method, path string) int {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr.Code
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()
	route := "/collections/{collection}/documents/{id}"

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "200"))
	serve(r, http.MethodGet, "/collections/users/documents/a")
	serve(r, http.MethodGet, "/collections/orders/documents/b")

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "200")) - before
	if got != 2 {
		t.Errorf("requests for %s = %f, want 2", route, got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := newRouter()

	tests := []struct {
		method, path, route, status string
	}{
		{"DELETE", "/collections/users/documents/a", "/collections/{collection}/documents/{id}", "204"},
		{"POST", "/collections/users/_search", "/collections/{collection}/_search", "422"},
		{"GET", "/nowhere", "unmatched", "404"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status))
			serve(r, tc.method, tc.path)
			after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status))
			if after-before != 1 {
				t.Errorf("requests_total{%s %s %s} grew by %f, want 1", tc.method, tc.route, tc.status, after-before)
			}
		})
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	r := newRouter()
	serve(r, http.MethodGet, "/collections/users/documents/a")
	if v := testutil.ToFloat64(httpRequestsInFlight); v != 0 {
		t.Errorf("in flight = %f, want 0", v)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unmatched"},
		{"/*", "unmatched"},
		{"/collections/{collection}/*", "/collections/{collection}"},
		{"/health", "/health"},
	}
	for _, tc := range tests {
		if got := routeLabel(tc.input); got != tc.expected {
			t.Errorf("routeLabel(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
