package curation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Service handles human curation of the unknown-attribute queue. Every
// commit immediately reloads the live vocabulary snapshot, so later searches
// resolve the phrase.
type Service struct {
	unknowns UnknownStore
	writer   VocabularyWriter
	vocabs   LiveVocabulary
	logger   *zap.Logger
}

// New creates a curation service.
func New(unknowns UnknownStore, writer VocabularyWriter, vocabs LiveVocabulary, logger *zap.Logger) *Service {
	return &Service{unknowns: unknowns, writer: writer, vocabs: vocabs, logger: logger}
}

// List returns queued unknown attributes, optionally narrowed by segment
// and status. Empty status means pending.
func (s *Service) List(ctx context.Context, seg segment.Segment, status domain.UnknownStatus, limit int) ([]domain.UnknownAttribute, error) {
	if seg != "" && !segment.IsValid(seg) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSegment, seg)
	}
	if status == "" {
		status = domain.UnknownPending
	}
	return s.unknowns.List(ctx, seg, status, limit)
}

// Approve promotes an unknown phrase to a canonical vocabulary value.
// A non-empty name overrides the raw phrase as the canonical spelling.
// Idempotent: approving an already-approved entry is a no-op.
func (s *Service) Approve(ctx context.Context, id int64, name string) (domain.UnknownAttribute, error) {
	ua, err := s.unknowns.Get(ctx, id)
	if err != nil {
		return domain.UnknownAttribute{}, err
	}
	if ua.Status == domain.UnknownApproved {
		return ua, nil
	}
	if ua.Status != domain.UnknownPending {
		return domain.UnknownAttribute{}, fmt.Errorf(
			"%w: attribute %d already resolved as %s", domain.ErrAlreadyExists, id, ua.Status)
	}

	canonical := name
	if canonical == "" {
		canonical = ua.RawValue
	}
	if err := s.writer.AddCanonical(ctx, ua.Segment, canonical); err != nil {
		return domain.UnknownAttribute{}, err
	}
	if canonical != ua.RawValue {
		// The raw phrase becomes an alias of its curated spelling.
		if err := s.writer.AddAlias(ctx, ua.Segment, canonical, ua.RawValue); err != nil {
			return domain.UnknownAttribute{}, err
		}
	}
	if err := s.unknowns.SetStatus(ctx, id, domain.UnknownApproved, ""); err != nil {
		return domain.UnknownAttribute{}, err
	}
	s.reload(ctx)

	ua.Status = domain.UnknownApproved
	s.logger.Info("approved unknown attribute as canonical value",
		zap.Int64("id", id), zap.String("segment", string(ua.Segment)),
		zap.String("value", ua.RawValue), zap.String("canonical", canonical))
	return ua, nil
}

// MapToExisting resolves an unknown phrase as an alias of an existing
// canonical value. Idempotent for repeats with the same target.
func (s *Service) MapToExisting(ctx context.Context, id int64, canonical string) (domain.UnknownAttribute, error) {
	ua, err := s.unknowns.Get(ctx, id)
	if err != nil {
		return domain.UnknownAttribute{}, err
	}
	// The target must already exist; a miss here would otherwise commit an
	// alias row pointing at nothing. Lookup also accepts an alias spelling
	// and resolves it to its canonical.
	resolved, ok := s.vocabs.Current().Lookup(ua.Segment, canonical)
	if !ok {
		return domain.UnknownAttribute{}, fmt.Errorf(
			"%w: no canonical value %q in segment %s", domain.ErrNotFound, canonical, ua.Segment)
	}
	canonical = resolved

	if ua.Status == domain.UnknownMapped && ua.MappedTo == canonical {
		return ua, nil
	}
	if ua.Status != domain.UnknownPending {
		return domain.UnknownAttribute{}, fmt.Errorf(
			"%w: attribute %d already resolved as %s", domain.ErrAlreadyExists, id, ua.Status)
	}

	if err := s.writer.AddAlias(ctx, ua.Segment, canonical, ua.RawValue); err != nil {
		return domain.UnknownAttribute{}, err
	}
	if err := s.unknowns.SetStatus(ctx, id, domain.UnknownMapped, canonical); err != nil {
		return domain.UnknownAttribute{}, err
	}
	s.reload(ctx)

	ua.Status = domain.UnknownMapped
	ua.MappedTo = canonical
	s.logger.Info("mapped unknown attribute to existing value",
		zap.Int64("id", id), zap.String("segment", string(ua.Segment)),
		zap.String("value", ua.RawValue), zap.String("canonical", canonical))
	return ua, nil
}

// reload swaps in a fresh vocabulary snapshot. A reload failure leaves the
// previous snapshot serving; the durable write already committed.
func (s *Service) reload(ctx context.Context) {
	if err := s.vocabs.Reload(ctx); err != nil {
		s.logger.Error("vocabulary reload failed after curation commit", zap.Error(err))
	}
}
