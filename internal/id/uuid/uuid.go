// Package uuid hands out the identifiers the catalog stamps on crawl runs and
// API requests.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// Generator issues time-ordered (v7) identifiers, so run IDs in the logs and
// X-Request-ID values sort by creation time.
type Generator struct{}

var _ catalog.IDGenerator = Generator{}

// New returns a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a v7 identifier for a crawl run.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// MustID is NewID for request paths that cannot fail; a v7 failure yields a
// random v4.
func (g Generator) MustID() string {
	if id, err := g.NewID(); err == nil {
		return id
	}
	return uuid.NewString()
}
