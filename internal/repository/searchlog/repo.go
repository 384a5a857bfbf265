package searchlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-vc/scout/internal/db/postgres"
)

// Entry is a completed search recorded for analytics.
type Entry struct {
	ID          uuid.UUID
	Query       string
	FiltersJSON []byte
	ResultCount int
	SearchedAt  time.Time
}

// SegmentUsage is one row of the filter-usage aggregation.
type SegmentUsage struct {
	Segment string
	Count   int64
}

// Repository persists the search log.
type Repository struct {
	pool postgres.Pool
}

func NewRepository(pool postgres.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records a completed search.
func (r *Repository) Insert(ctx context.Context, query string, filtersJSON []byte, resultCount int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO search_log (id, query, filters, result_count, searched_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), query, filtersJSON, resultCount)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}

// Recent returns the latest searches, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, query, filters, result_count, searched_at
		FROM search_log
		ORDER BY searched_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Query, &e.FiltersJSON, &e.ResultCount, &e.SearchedAt); err != nil {
			return nil, fmt.Errorf("recent searches: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	return out, nil
}

// SegmentUsage aggregates how often each segment appeared in applied filters
// since the given time.
func (r *Repository) SegmentUsage(ctx context.Context, since time.Time) ([]SegmentUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f->>'segment' AS segment, count(*) AS uses
		FROM search_log, jsonb_array_elements(filters->'filters') AS f
		WHERE searched_at >= $1
		GROUP BY 1
		ORDER BY uses DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("segment usage: %w", err)
	}
	defer rows.Close()

	var out []SegmentUsage
	for rows.Next() {
		var u SegmentUsage
		if err := rows.Scan(&u.Segment, &u.Count); err != nil {
			return nil, fmt.Errorf("segment usage: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("segment usage: %w", err)
	}
	return out, nil
}
