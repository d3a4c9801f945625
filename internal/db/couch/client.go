// Package couch is a CouchDB backend speaking the HTTP document API.
package couch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/backsync/internal/db"
)

// Compile-time checks.
var (
	_ db.Store           = (*Store)(nil)
	_ db.DatabaseCreator = (*Store)(nil)
)

// Config holds connection parameters for a CouchDB server.
type Config struct {
	// URL is the server base, e.g. http://localhost:5984. Collections map to databases under it.
	URL      string
	Username string
	Password string
	// RequestsPerSecond paces outgoing requests; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Store implements db.Store over CouchDB.
type Store struct {
	base     *url.URL
	user     string
	password string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewStore creates a CouchDB store. No request is made until first use.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("url scheme must be http or https, got %q", base.Scheme)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	s := &Store{base: base, user: cfg.Username, password: cfg.Password, http: client}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s, nil
}

// Ping checks the server root responds.
func (s *Store) Ping(ctx context.Context) error {
	if _, _, err := s.do(ctx, http.MethodGet, s.base.String(), nil, nil); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() {
	s.http.CloseIdleConnections()
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for couchdb: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// CreateDatabase creates the database backing a collection.
func (s *Store) CreateDatabase(ctx context.Context, collection string) error {
	if _, _, err := s.do(ctx, http.MethodPut, s.dbURL(collection), nil, nil); err != nil {
		return &db.Error{Op: db.OpCreateDB, Err: err}
	}
	return nil
}

func (s *Store) dbURL(collection string) string {
	return s.base.String() + "/" + url.PathEscape(collection)
}

func (s *Store) docURL(collection, id string) string {
	return s.dbURL(collection) + "/" + url.PathEscape(id)
}

// do performs one request and returns the raw body. Error bodies of the form
// {"error": ..., "reason": ...} become *APIError.
func (s *Store) do(
	ctx context.Context, method, rawURL string, params url.Values, body any,
) ([]byte, string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, rawURL, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, rawURL, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.user != "" {
		req.SetBasicAuth(s.user, s.password)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, rawURL, fmt.Errorf("%s %s: %w", method, redact(rawURL), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rawURL, fmt.Errorf("read body: %w", err)
	}

	if apiErr := decodeError(resp.StatusCode, raw); apiErr != nil {
		return raw, rawURL, apiErr
	}
	return raw, rawURL, nil
}

// APIError is an error body returned by CouchDB.
type APIError struct {
	Status int
	Code   string `json:"error"`
	Reason string `json:"reason"`
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return e.Code
	}
	return e.Code + ": " + e.Reason
}

// Unwrap maps CouchDB error codes onto db sentinels.
func (e *APIError) Unwrap() []error {
	switch e.Code {
	case "not_found":
		if e.Reason == "no_db_file" || e.Reason == "Database does not exist." {
			return []error{db.ErrNotFound, db.ErrDatabaseMissing}
		}
		return []error{db.ErrNotFound}
	case "conflict":
		return []error{db.ErrConflict}
	case "file_exists":
		return []error{db.ErrDatabaseExists}
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var e APIError
	if err := json.Unmarshal(raw, &e); err == nil && e.Code != "" {
		e.Status = status
		return &e
	}
	if status >= http.StatusBadRequest {
		return &APIError{Status: status, Code: http.StatusText(status)}
	}
	return nil
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}

// IsAPIError reports whether err carries a CouchDB error body with the given code.
func IsAPIError(err error, code string) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == code
}
