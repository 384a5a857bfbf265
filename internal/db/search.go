package db

import "github.com/lattice-vc/scout/internal/domain/filter"

// KNNQuery is the input for vector similarity search with hard pre-filters.
type KNNQuery struct {
	IndexName    string
	Filters      filter.QueryFilters
	Vector       []float32
	K            int
	ReturnFields []string
}

// SortedQuery is a filters-only search ordered by a stable sort key,
// used when there is no query text and therefore no similarity signal.
type SortedQuery struct {
	IndexName    string
	Filters      filter.QueryFilters
	SortBy       string
	SortDesc     bool
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
