package search

import (
	"context"

	"github.com/kailas-cloud/backsync/internal/domain/query"
	"github.com/kailas-cloud/backsync/internal/domain/search/page"
)

// PageReader issues one bounded scan request against a collection.
// A missing collection is reported as domain.ErrNotFound.
type PageReader interface {
	FetchPage(ctx context.Context, collection string, p query.ScanParams) (*page.Page, error)
}

// Observer is notified after every page request, successful or not.
type Observer interface {
	OnPageRequest(ctx context.Context, ev RequestEvent)
}
