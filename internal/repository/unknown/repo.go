package unknown

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lattice-vc/scout/internal/db/postgres"
	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Repository persists unknown attribute phrases queued for curation.
type Repository struct {
	pool postgres.Pool
}

func NewRepository(pool postgres.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record upserts an unknown phrase: the first sighting inserts a pending
// row, later sightings bump the occurrence count and last-seen timestamp.
func (r *Repository) Record(ctx context.Context, seg segment.Segment, rawValue string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO unknown_attributes (segment, raw_value, occurrences, first_seen, last_seen, status)
		VALUES ($1, $2, 1, now(), now(), $3)
		ON CONFLICT (segment, raw_value) DO UPDATE
		SET occurrences = unknown_attributes.occurrences + 1,
		    last_seen = now()`, string(seg), rawValue, string(domain.UnknownPending))
	if err != nil {
		return fmt.Errorf("record unknown %s/%q: %w", seg, rawValue, err)
	}
	return nil
}

// List returns unknown attributes, optionally narrowed by segment and
// status, most frequent first.
func (r *Repository) List(ctx context.Context, seg segment.Segment, status domain.UnknownStatus, limit int) ([]domain.UnknownAttribute, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, segment, raw_value, occurrences, first_seen, last_seen, status, COALESCE(mapped_to, '')
		FROM unknown_attributes
		WHERE ($1 = '' OR segment = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY occurrences DESC, raw_value ASC
		LIMIT $3`, string(seg), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list unknown attributes: %w", err)
	}
	defer rows.Close()

	var out []domain.UnknownAttribute
	for rows.Next() {
		var ua domain.UnknownAttribute
		var segName, statusName string
		if err := rows.Scan(&ua.ID, &segName, &ua.RawValue, &ua.Occurrences,
			&ua.FirstSeen, &ua.LastSeen, &statusName, &ua.MappedTo); err != nil {
			return nil, fmt.Errorf("list unknown attributes: scan: %w", err)
		}
		ua.Segment = segment.Segment(segName)
		ua.Status = domain.UnknownStatus(statusName)
		out = append(out, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unknown attributes: %w", err)
	}
	return out, nil
}

// Get returns one unknown attribute by ID.
func (r *Repository) Get(ctx context.Context, id int64) (domain.UnknownAttribute, error) {
	var ua domain.UnknownAttribute
	var segName, statusName string
	err := r.pool.QueryRow(ctx, `
		SELECT id, segment, raw_value, occurrences, first_seen, last_seen, status, COALESCE(mapped_to, '')
		FROM unknown_attributes
		WHERE id = $1`, id).
		Scan(&ua.ID, &segName, &ua.RawValue, &ua.Occurrences,
			&ua.FirstSeen, &ua.LastSeen, &statusName, &ua.MappedTo)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UnknownAttribute{}, fmt.Errorf("%w: unknown attribute %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.UnknownAttribute{}, fmt.Errorf("get unknown attribute %d: %w", id, err)
	}
	ua.Segment = segment.Segment(segName)
	ua.Status = domain.UnknownStatus(statusName)
	return ua, nil
}

// SetStatus moves an unknown attribute to a terminal curation status.
// mappedTo is stored only for mapped_to_existing.
func (r *Repository) SetStatus(ctx context.Context, id int64, status domain.UnknownStatus, mappedTo string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE unknown_attributes
		SET status = $2, mapped_to = NULLIF($3, '')
		WHERE id = $1`, id, string(status), mappedTo)
	if err != nil {
		return fmt.Errorf("update unknown attribute %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: unknown attribute %d", domain.ErrNotFound, id)
	}
	return nil
}
