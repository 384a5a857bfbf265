package vocab

import (
	"context"
	"fmt"

	"github.com/lattice-vc/scout/internal/db/postgres"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/vocab"
)

// Repository persists the attribute vocabulary: canonical values and their
// aliases, per text segment.
type Repository struct {
	pool postgres.Pool
}

func NewRepository(pool postgres.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadVocabulary reads the full vocabulary. Implements vocab.Loader.
func (r *Repository) LoadVocabulary(ctx context.Context) (map[segment.Segment][]vocab.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT v.segment, v.canonical, COALESCE(array_agg(a.alias) FILTER (WHERE a.alias IS NOT NULL), '{}')
		FROM vocabulary_values v
		LEFT JOIN vocabulary_aliases a ON a.value_id = v.id
		GROUP BY v.segment, v.canonical
		ORDER BY v.segment, v.canonical`)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	defer rows.Close()

	out := make(map[segment.Segment][]vocab.Entry)
	for rows.Next() {
		var seg string
		var entry vocab.Entry
		if err := rows.Scan(&seg, &entry.Canonical, &entry.Aliases); err != nil {
			return nil, fmt.Errorf("load vocabulary: scan: %w", err)
		}
		if !segment.IsValid(segment.Segment(seg)) {
			// Rows for retired segments are ignored rather than fatal.
			continue
		}
		out[segment.Segment(seg)] = append(out[segment.Segment(seg)], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return out, nil
}

// AddCanonical inserts a canonical value. Idempotent: re-adding an existing
// value is a no-op.
func (r *Repository) AddCanonical(ctx context.Context, seg segment.Segment, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vocabulary_values (segment, canonical)
		VALUES ($1, $2)
		ON CONFLICT (segment, canonical) DO NOTHING`, string(seg), value)
	if err != nil {
		return fmt.Errorf("add canonical %q to %s: %w", value, seg, err)
	}
	return nil
}

// AddAlias attaches an alias to an existing canonical value. Idempotent.
func (r *Repository) AddAlias(ctx context.Context, seg segment.Segment, canonical, alias string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vocabulary_aliases (value_id, alias)
		SELECT id, $3 FROM vocabulary_values WHERE segment = $1 AND canonical = $2
		ON CONFLICT (value_id, alias) DO NOTHING`, string(seg), canonical, alias)
	if err != nil {
		return fmt.Errorf("add alias %q to %s/%s: %w", alias, seg, canonical, err)
	}
	return nil
}
