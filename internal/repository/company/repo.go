package company

import (
	"context"
	"fmt"

	"github.com/lattice-vc/scout/internal/db/postgres"
)

// Record carries the display fields the search index does not store.
type Record struct {
	ID         string
	WebsiteURL string
	City       string
}

// Repository reads supplemental company fields from the record store.
type Repository struct {
	pool postgres.Pool
}

func NewRepository(pool postgres.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes a company record, replacing any existing row.
func (r *Repository) Upsert(ctx context.Context, rec Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO companies (id, website_url, city)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET website_url = EXCLUDED.website_url, city = EXCLUDED.city`,
		rec.ID, rec.WebsiteURL, rec.City)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", rec.ID, err)
	}
	return nil
}

// GetByIDs fetches records for the given company IDs, keyed by ID. Missing
// IDs are simply absent from the map; assembly degrades per company.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) (map[string]Record, error) {
	if len(ids) == 0 {
		return map[string]Record{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(website_url, ''), COALESCE(city, '')
		FROM companies
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("company records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Record, len(ids))
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.WebsiteURL, &rec.City); err != nil {
			return nil, fmt.Errorf("company records: scan: %w", err)
		}
		out[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("company records: %w", err)
	}
	return out, nil
}
