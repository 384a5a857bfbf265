package search

import (
	"context"
	"errors"
	"testing"

	"github.com/lattice-vc/scout/internal/db"
	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
)

type mockSearcher struct {
	knnResult    *db.SearchResult
	knnErr       error
	sortedResult *db.SearchResult
	sortedErr    error
	lastKNN      *db.KNNQuery
	lastSorted   *db.SortedQuery
}

func (m *mockSearcher) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastKNN = q
	return m.knnResult, m.knnErr
}

func (m *mockSearcher) SearchSorted(_ context.Context, q *db.SortedQuery) (*db.SearchResult, error) {
	m.lastSorted = q
	return m.sortedResult, m.sortedErr
}

func entry(id string, score float64, fields map[string]string) db.SearchEntry {
	if fields == nil {
		fields = map[string]string{}
	}
	return db.SearchEntry{Key: domain.KeyPrefix + id, Score: score, Fields: fields}
}

func TestSearchKNN_AssemblesResults(t *testing.T) {
	store := &mockSearcher{knnResult: &db.SearchResult{
		Total: 1,
		Entries: []db.SearchEntry{
			entry("c1", 0.9, map[string]string{
				"name":           "Acme",
				"description":    "payments",
				"industries":     "Fintech|Payments",
				"location":       "New York",
				"employee_count": "120",
			}),
		},
	}}
	repo := NewRepository(store)

	ranked, err := repo.SearchKNN(context.Background(), filter.QueryFilters{}, []float32{0.1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranked))
	}

	r := ranked[0]
	if r.CompanyID() != "c1" {
		t.Errorf("CompanyID = %q, key prefix should be stripped", r.CompanyID())
	}
	if r.Rank() != 1 || r.Score() != 0.9 || r.Name() != "Acme" {
		t.Errorf("unexpected result: rank=%d score=%g name=%q", r.Rank(), r.Score(), r.Name())
	}
	tags := r.Tags()["industries"]
	if len(tags) != 2 || tags[0] != "Fintech" || tags[1] != "Payments" {
		t.Errorf("multi-valued tag not split: %v", tags)
	}
	if r.Numerics()["employee_count"] != 120 {
		t.Errorf("numeric field not parsed: %v", r.Numerics())
	}

	if store.lastKNN.IndexName != domain.CatalogIndex {
		t.Errorf("index = %q", store.lastKNN.IndexName)
	}
	if store.lastKNN.K != 10 {
		t.Errorf("k = %d", store.lastKNN.K)
	}
}

func TestSearchKNN_DeterministicOrdering(t *testing.T) {
	// Equal scores tie-break by company ID ascending; otherwise score wins.
	store := &mockSearcher{knnResult: &db.SearchResult{
		Total: 4,
		Entries: []db.SearchEntry{
			entry("c3", 0.8, map[string]string{"name": "C"}),
			entry("c1", 0.9, map[string]string{"name": "A"}),
			entry("c4", 0.8, map[string]string{"name": "D"}),
			entry("c2", 0.8, map[string]string{"name": "B"}),
		},
	}}
	repo := NewRepository(store)

	ranked, err := repo.SearchKNN(context.Background(), filter.QueryFilters{}, []float32{0.1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"c1", "c2", "c3", "c4"}
	for i, id := range want {
		if ranked[i].CompanyID() != id {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].CompanyID(), id)
		}
		if ranked[i].Rank() != i+1 {
			t.Errorf("rank at %d = %d, want %d", i, ranked[i].Rank(), i+1)
		}
	}
}

func TestSearchSorted_KeepsIndexOrder(t *testing.T) {
	store := &mockSearcher{sortedResult: &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			entry("c9", 0, map[string]string{"name": "Biggest", "funding_amount": "500000000"}),
			entry("c2", 0, map[string]string{"name": "Second", "funding_amount": "100000000"}),
		},
	}}
	repo := NewRepository(store)

	ranked, err := repo.SearchSorted(context.Background(), filter.QueryFilters{}, "funding_amount", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked[0].CompanyID() != "c9" || ranked[1].CompanyID() != "c2" {
		t.Error("sorted scan must preserve the index ordering")
	}
	if !store.lastSorted.SortDesc || store.lastSorted.SortBy != "funding_amount" {
		t.Errorf("unexpected sorted query: %+v", store.lastSorted)
	}
}

func TestSearchKNN_MapsIndexErrors(t *testing.T) {
	store := &mockSearcher{knnErr: &db.Error{Op: db.OpSearch, Err: errors.New("connection refused")}}
	repo := NewRepository(store)

	_, err := repo.SearchKNN(context.Background(), filter.QueryFilters{}, []float32{0.1}, 10)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestAssemble_MissingFieldsTolerated(t *testing.T) {
	store := &mockSearcher{knnResult: &db.SearchResult{
		Total:   1,
		Entries: []db.SearchEntry{entry("c1", 0.5, map[string]string{"name": "Sparse"})},
	}}
	repo := NewRepository(store)

	ranked, err := repo.SearchKNN(context.Background(), filter.QueryFilters{}, []float32{0.1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := ranked[0]
	if len(r.Tags()) != 0 || len(r.Numerics()) != 0 {
		t.Errorf("absent segment fields should stay absent: tags=%v numerics=%v", r.Tags(), r.Numerics())
	}
}
