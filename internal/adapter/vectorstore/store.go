// Package vectorstore holds the knowledge index adapters: Qdrant over its
// REST API and an in-memory store used by tests and mock mode.
package vectorstore

import (
	"context"
	"errors"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// DefaultK is the number of neighbours fetched when the caller passes k <= 0.
const DefaultK = 4

// ErrMissingPredicate is returned when a search is attempted without an
// access predicate. Unfiltered searches are never allowed.
var ErrMissingPredicate = errors.New("vectorstore: access predicate is required")

// Store is a vector index that applies the access predicate before it
// returns any document.
type Store interface {
	Search(ctx context.Context, vector []float32, predicate *domain.AccessPredicate, k int) ([]domain.RetrievedDocument, error)
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) error
}
