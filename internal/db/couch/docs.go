package couch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

type writeResponse struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// GetDoc reads a single document.
func (s *Store) GetDoc(ctx context.Context, collection, id string) (db.Row, error) {
	raw, _, err := s.do(ctx, http.MethodGet, s.docURL(collection, id), nil, nil)
	if err != nil {
		return db.Row{}, &db.Error{Op: db.OpGet, Err: err}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return db.Row{}, &db.Error{Op: db.OpDecode, Err: err}
	}
	rev, _ := doc[record.CouchCodec.RevField].(string)
	return db.Row{ID: id, Rev: rev, Doc: doc}, nil
}

// PutDoc writes a document, passing rev as the concurrency precondition.
func (s *Store) PutDoc(ctx context.Context, collection, id, rev string, doc map[string]any) (string, error) {
	var params url.Values
	if rev != "" {
		params = url.Values{"rev": {rev}}
	}

	raw, _, err := s.do(ctx, http.MethodPut, s.docURL(collection, id), params, doc)
	if err != nil {
		return "", &db.Error{Op: db.OpPut, Err: err}
	}

	var resp writeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &db.Error{Op: db.OpDecode, Err: err}
	}
	if resp.Rev == "" {
		return "", &db.Error{Op: db.OpPut, Err: fmt.Errorf("response carries no revision")}
	}
	return resp.Rev, nil
}

// DeleteDoc deletes a document. An empty rev deletes whatever revision is current.
func (s *Store) DeleteDoc(ctx context.Context, collection, id, rev string) error {
	if rev == "" {
		cur, err := s.GetDoc(ctx, collection, id)
		if err != nil {
			return err
		}
		rev = cur.Rev
	}

	params := url.Values{"rev": {rev}}
	if _, _, err := s.do(ctx, http.MethodDelete, s.docURL(collection, id), params, nil); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}
