package catalog

import (
	"context"
	"time"
)

// DocumentFetcher retrieves a single remote document.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
