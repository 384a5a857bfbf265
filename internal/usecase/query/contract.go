package query

import (
	"context"

	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/repository/company"
)

// Searcher executes the retrieval step.
type Searcher interface {
	Search(ctx context.Context, retrievalText string, filters filter.QueryFilters, topK int) ([]result.Ranked, error)
}

// UnknownSink records phrases that failed normalization for later curation.
type UnknownSink interface {
	Record(ctx context.Context, seg segment.Segment, rawValue string) error
}

// CompanyReader fetches supplemental record-store fields for ranked IDs.
type CompanyReader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]company.Record, error)
}

// SearchLogger persists completed searches for analytics.
type SearchLogger interface {
	Insert(ctx context.Context, query string, filtersJSON []byte, resultCount int) error
}
