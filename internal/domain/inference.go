package domain

import "context"

// RawRule is one operator+value pair extracted from query text, before
// vocabulary normalization. Values are strings even for numeric segments.
type RawRule struct {
	Op    string `json:"op"`
	Value string `json:"value"`
}

// RawFilter is one extracted segment constraint.
type RawFilter struct {
	Segment string    `json:"segment"`
	Logic   string    `json:"logic"`
	Rules   []RawRule `json:"rules"`
}

// ResultSummary is the per-company context for explanation generation.
type ResultSummary struct {
	Name        string
	Description string
}

// AttributeExtractor parses free-text queries into raw segment constraints.
type AttributeExtractor interface {
	ExtractAttributes(ctx context.Context, query string) ([]RawFilter, error)
}

// QueryRewriter produces the retrieval text: query intent minus what the
// structured filters already capture. Implementations degrade to the
// original query on failure instead of returning an error.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, query, appliedFilters string) string
}

// Explainer generates one match explanation per result in a single call.
// appliedFilters is the rendered filter document that shaped the result
// set. The returned slice is position-aligned with the input.
type Explainer interface {
	ExplainBatch(ctx context.Context, query, appliedFilters string, results []ResultSummary) ([]string, error)
}
