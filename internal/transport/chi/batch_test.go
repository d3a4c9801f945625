package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func decodeBatch(t *testing.T, b []byte) batchResponse {
	t.Helper()
	var out batchResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("decode batch %s: %v", b, err)
	}
	return out
}

func TestBatchUpsert(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, "people", map[string]map[string]any{"taken": {"age": 1}})

	resp, body := api.do(t, http.MethodPost, "/collections/people/documents/_batch", map[string]any{
		"documents": []map[string]any{
			{"id": "fresh", "age": 2},
			{"id": "taken", "age": 3},
			{"id": "taken", "rev": "9-stale", "age": 4},
			{"id": "ghost", "rev": "1-x"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	out := decodeBatch(t, body)
	if out.Succeeded != 3 || out.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d: %s", out.Succeeded, out.Failed, body)
	}
	if out.Items[0].ID != "fresh" || out.Items[0].Rev == "" || out.Items[0].Status != "ok" {
		t.Errorf("unexpected item 0 %+v", out.Items[0])
	}
	// the stale revision is re-read once and then written
	if out.Items[2].Status != "ok" {
		t.Errorf("unexpected item 2 %+v", out.Items[2])
	}
	if out.Items[3].Error == nil || out.Items[3].Error.Code != CodeNotFound {
		t.Errorf("unexpected item 3 %+v", out.Items[3])
	}

	_, body = api.do(t, http.MethodGet, "/collections/people/documents/taken", nil)
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["age"] != float64(4) {
		t.Errorf("taken = %v, want age 4", doc)
	}
}

func TestBatchUpsert_SizeBounds(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		docs []map[string]any
	}{
		{"empty", []map[string]any{}},
		{"too many", []map[string]any{{}, {}, {}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := api.do(t, http.MethodPost, "/collections/people/documents/_batch",
				map[string]any{"documents": tt.docs})
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestBatchDelete(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, "people", map[string]map[string]any{"a": {}, "b": {}})

	resp, body := api.do(t, http.MethodDelete, "/collections/people/documents/_batch",
		map[string]any{"ids": []string{"a", "missing", "b"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	out := decodeBatch(t, body)
	if out.Succeeded != 2 || out.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d", out.Succeeded, out.Failed)
	}
	if out.Items[1].Error == nil || out.Items[1].Error.Code != CodeNotFound {
		t.Errorf("unexpected item 1 %+v", out.Items[1])
	}
}

func TestBatch_Disabled(t *testing.T) {
	server := NewServer(nil, nil, nil, zap.NewNop())
	srv := httptest.NewServer(NewRouter(server, zap.NewNop()))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Post(srv.URL+"/collections/people/documents/_batch", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}
