package search

import (
	"context"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
)

// Repository defines the index contract for retrieval.
type Repository interface {
	SearchKNN(ctx context.Context, filters filter.QueryFilters, vector []float32, k int) ([]result.Ranked, error)
	SearchSorted(ctx context.Context, filters filter.QueryFilters, sortBy string, limit int) ([]result.Ranked, error)
}

// Embedder vectorizes retrieval text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
