package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
)

// Service executes hybrid retrieval: vector similarity constrained by hard
// attribute filters, with a sorted fallback when there is no query text.
type Service struct {
	repo        Repository
	embed       Embedder
	defaultTopK int
	maxTopK     int
	emptySortBy string
}

// New creates a retrieval service.
func New(repo Repository, embed Embedder, defaultTopK, maxTopK int, emptySortBy string) *Service {
	return &Service{
		repo:        repo,
		embed:       embed,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		emptySortBy: emptySortBy,
	}
}

// Search retrieves the top matches for the retrieval text under the given
// filters. Filters are hard constraints: a document failing any clause never
// appears regardless of similarity. Empty retrieval text switches to a
// deterministic sorted scan, since no similarity signal exists.
func (s *Service) Search(
	ctx context.Context, retrievalText string, filters filter.QueryFilters, topK int,
) ([]result.Ranked, error) {
	topK = s.clampTopK(topK)

	if strings.TrimSpace(retrievalText) == "" {
		results, err := s.repo.SearchSorted(ctx, filters, s.emptySortBy, topK)
		if err != nil {
			return nil, fmt.Errorf("sorted search: %w", err)
		}
		return results, nil
	}

	embResult, err := s.embed.Embed(ctx, retrievalText)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.repo.SearchKNN(ctx, filters, embResult.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		return s.defaultTopK
	}
	if topK > s.maxTopK {
		return s.maxTopK
	}
	return topK
}
