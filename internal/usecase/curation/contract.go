package curation

import (
	"context"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/vocab"
)

// UnknownStore persists the unknown-attribute queue.
type UnknownStore interface {
	List(ctx context.Context, seg segment.Segment, status domain.UnknownStatus, limit int) ([]domain.UnknownAttribute, error)
	Get(ctx context.Context, id int64) (domain.UnknownAttribute, error)
	SetStatus(ctx context.Context, id int64, status domain.UnknownStatus, mappedTo string) error
}

// VocabularyWriter mutates the durable vocabulary.
type VocabularyWriter interface {
	AddCanonical(ctx context.Context, seg segment.Segment, value string) error
	AddAlias(ctx context.Context, seg segment.Segment, canonical, alias string) error
}

// LiveVocabulary serves the current snapshot and rebuilds it after a commit.
type LiveVocabulary interface {
	Current() *vocab.Snapshot
	Reload(ctx context.Context) error
}
