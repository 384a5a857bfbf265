package search

import (
	"context"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
)

type mockRepo struct {
	knnResults    []result.Ranked
	knnErr        error
	sortedResults []result.Ranked
	sortedErr     error

	knnCalled    bool
	sortedCalled bool
	lastK        int
	lastLimit    int
	lastSortBy   string
	lastFilters  filter.QueryFilters
}

func (m *mockRepo) SearchKNN(_ context.Context, filters filter.QueryFilters, _ []float32, k int) ([]result.Ranked, error) {
	m.knnCalled = true
	m.lastK = k
	m.lastFilters = filters
	return m.knnResults, m.knnErr
}

func (m *mockRepo) SearchSorted(_ context.Context, filters filter.QueryFilters, sortBy string, limit int) ([]result.Ranked, error) {
	m.sortedCalled = true
	m.lastLimit = limit
	m.lastSortBy = sortBy
	m.lastFilters = filters
	return m.sortedResults, m.sortedErr
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

func rankedFixture(ids ...string) []result.Ranked {
	out := make([]result.Ranked, 0, len(ids))
	for i, id := range ids {
		out = append(out, result.New(id, i+1, 1.0-float64(i)*0.1, "Company "+id, "", nil, nil))
	}
	return out
}
