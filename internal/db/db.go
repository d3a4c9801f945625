package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/backsync/internal/domain/query"
)

// Store is the main backend facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	PageReader
	DocumentStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Row is one entry of a page: the document id, its revision and the raw
// wire document (backend-native _id/_rev fields included).
type Row struct {
	ID  string
	Rev string
	Doc map[string]any
}

// Page is the result of one sequential-scan request.
type Page struct {
	Rows []Row
	// Total is the number of documents in the collection, -1 when unknown.
	Total int
	// Offset is the position of the first row in the collection, -1 when unknown.
	Offset int
	// HasMore is false once the backend knows the scan is exhausted.
	HasMore bool
	// Source describes the request (URL or command) for observers.
	Source string
	// Raw is the undecoded response body when the transport has one.
	Raw []byte
}

// PageReader issues a single bounded request against the id-ordered scan
// endpoint of a collection. Implementations never retry.
type PageReader interface {
	FetchPage(ctx context.Context, collection string, p query.ScanParams) (*Page, error)
}

// DocumentStore provides revision-checked single-document operations.
//
// PutDoc with an empty rev creates the document and fails with ErrConflict
// when it already exists; with a rev it replaces the document only if rev is
// current. Both return the new revision.
type DocumentStore interface {
	GetDoc(ctx context.Context, collection, id string) (Row, error)
	PutDoc(ctx context.Context, collection, id, rev string, doc map[string]any) (string, error)
	DeleteDoc(ctx context.Context, collection, id, rev string) error
}

// DatabaseCreator is implemented by backends whose collections must be
// created explicitly before the first write.
type DatabaseCreator interface {
	CreateDatabase(ctx context.Context, collection string) error
}

// Merger is implemented by backends that can merge fields into a stored
// document atomically, without a read-modify-write round trip. MergeDoc
// returns the merged document with its new revision.
type Merger interface {
	MergeDoc(ctx context.Context, collection, id string, fields map[string]any) (Row, error)
}
