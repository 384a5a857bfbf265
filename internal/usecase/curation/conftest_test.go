package curation

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/vocab"
)

type mockUnknownStore struct {
	items    map[int64]domain.UnknownAttribute
	listErr  error
	statuses []statusChange
}

type statusChange struct {
	ID       int64
	Status   domain.UnknownStatus
	MappedTo string
}

func (m *mockUnknownStore) List(_ context.Context, seg segment.Segment, status domain.UnknownStatus, _ int) ([]domain.UnknownAttribute, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.UnknownAttribute
	for _, ua := range m.items {
		if seg != "" && ua.Segment != seg {
			continue
		}
		if ua.Status != status {
			continue
		}
		out = append(out, ua)
	}
	return out, nil
}

func (m *mockUnknownStore) Get(_ context.Context, id int64) (domain.UnknownAttribute, error) {
	ua, ok := m.items[id]
	if !ok {
		return domain.UnknownAttribute{}, domain.ErrNotFound
	}
	return ua, nil
}

func (m *mockUnknownStore) SetStatus(_ context.Context, id int64, status domain.UnknownStatus, mappedTo string) error {
	ua, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	ua.Status = status
	ua.MappedTo = mappedTo
	m.items[id] = ua
	m.statuses = append(m.statuses, statusChange{ID: id, Status: status, MappedTo: mappedTo})
	return nil
}

type mockVocabWriter struct {
	canonicals []string
	aliases    [][2]string // canonical, alias
	err        error
}

func (m *mockVocabWriter) AddCanonical(_ context.Context, _ segment.Segment, value string) error {
	if m.err != nil {
		return m.err
	}
	m.canonicals = append(m.canonicals, value)
	return nil
}

func (m *mockVocabWriter) AddAlias(_ context.Context, _ segment.Segment, canonical, alias string) error {
	if m.err != nil {
		return m.err
	}
	m.aliases = append(m.aliases, [2]string{canonical, alias})
	return nil
}

type mockVocab struct {
	snapshot *vocab.Snapshot
	calls    int
	err      error
}

func (m *mockVocab) Current() *vocab.Snapshot { return m.snapshot }

func (m *mockVocab) Reload(_ context.Context) error {
	m.calls++
	return m.err
}

func pendingItem(id int64, seg segment.Segment, raw string) domain.UnknownAttribute {
	now := time.Now()
	return domain.UnknownAttribute{
		ID:          id,
		RawValue:    raw,
		Segment:     seg,
		Occurrences: 3,
		FirstSeen:   now.Add(-time.Hour),
		LastSeen:    now,
		Status:      domain.UnknownPending,
	}
}

func newTestCuration(t *testing.T, items ...domain.UnknownAttribute) (*Service, *mockUnknownStore, *mockVocabWriter, *mockVocab) {
	t.Helper()
	store := &mockUnknownStore{items: make(map[int64]domain.UnknownAttribute)}
	for _, ua := range items {
		store.items[ua.ID] = ua
	}
	writer := &mockVocabWriter{}
	vocabs := &mockVocab{snapshot: vocab.NewSnapshot(1, map[segment.Segment][]vocab.Entry{
		segment.Industries: {
			{Canonical: "Fintech"},
			{Canonical: "Healthcare IT", Aliases: []string{"Health IT"}},
		},
	})}
	return New(store, writer, vocabs, zap.NewNop()), store, writer, vocabs
}
