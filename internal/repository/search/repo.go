package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lattice-vc/scout/internal/db"
	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

// TagSeparator joins multi-valued tag fields in index documents.
const TagSeparator = "|"

// Repository executes hybrid queries against the company index.
type Repository struct {
	store db.Searcher
}

func NewRepository(store db.Searcher) *Repository {
	return &Repository{store: store}
}

var returnFields = buildReturnFields()

func buildReturnFields() []string {
	fields := []string{"name", "description"}
	for _, seg := range segment.All() {
		fields = append(fields, string(seg))
	}
	return fields
}

// SearchKNN runs a vector similarity query pre-filtered by the given
// attribute filters. Results come back ordered by score descending with
// company ID as the tie-break, so identical inputs rank identically.
func (r *Repository) SearchKNN(ctx context.Context, filters filter.QueryFilters, vector []float32, k int) ([]result.Ranked, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    domain.CatalogIndex,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return r.assemble(res.Entries, true)
}

// SearchSorted serves filters-only queries: no similarity signal exists, so
// results are ordered by the configured sort key instead.
func (r *Repository) SearchSorted(ctx context.Context, filters filter.QueryFilters, sortBy string, limit int) ([]result.Ranked, error) {
	res, err := r.store.SearchSorted(ctx, &db.SortedQuery{
		IndexName:    domain.CatalogIndex,
		Filters:      filters,
		SortBy:       sortBy,
		SortDesc:     true,
		Limit:        limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return r.assemble(res.Entries, false)
}

func (r *Repository) assemble(entries []db.SearchEntry, byScore bool) ([]result.Ranked, error) {
	ranked := make([]result.Ranked, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimPrefix(e.Key, domain.KeyPrefix)
		tags := make(map[string][]string)
		numerics := make(map[string]float64)
		for _, seg := range segment.All() {
			raw, ok := e.Fields[string(seg)]
			if !ok || raw == "" {
				continue
			}
			kind, _ := segment.KindOf(seg)
			switch kind {
			case segment.Numeric:
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("parse field %s of %s: %w", seg, id, err)
				}
				numerics[string(seg)] = v
			default:
				tags[string(seg)] = strings.Split(raw, TagSeparator)
			}
		}
		ranked = append(ranked, result.New(id, 0, e.Score, e.Fields["name"], e.Fields["description"], tags, numerics))
	}

	if byScore {
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Score() != ranked[j].Score() {
				return ranked[i].Score() > ranked[j].Score()
			}
			return ranked[i].CompanyID() < ranked[j].CompanyID()
		})
	}
	for i := range ranked {
		ranked[i] = ranked[i].WithRank(i + 1)
	}
	return ranked, nil
}

func mapErr(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%w: %s", domain.ErrIndexUnavailable, dbErr.Error())
	}
	return err
}
