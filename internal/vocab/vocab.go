// Package vocab holds the canonical vocabulary: per-segment canonical values
// and their alias lists. Searches read an immutable versioned snapshot that
// curation swaps atomically, so concurrent readers never see a half-built
// vocabulary and no read locking is needed.
package vocab

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Entry is one canonical value and its known aliases.
type Entry struct {
	Canonical string
	Aliases   []string
}

// Snapshot is an immutable view of the vocabulary at one version.
type Snapshot struct {
	version int64
	values  map[segment.Segment][]string
	aliases map[segment.Segment]map[string]string
}

// NewSnapshot builds a snapshot from per-segment entries. Canonical values
// are sorted so candidate iteration order is deterministic.
func NewSnapshot(version int64, entries map[segment.Segment][]Entry) *Snapshot {
	s := &Snapshot{
		version: version,
		values:  make(map[segment.Segment][]string, len(entries)),
		aliases: make(map[segment.Segment]map[string]string, len(entries)),
	}
	for seg, list := range entries {
		idx := make(map[string]string, len(list)*2)
		vals := make([]string, 0, len(list))
		for _, e := range list {
			vals = append(vals, e.Canonical)
			idx[Fold(e.Canonical)] = e.Canonical
			for _, a := range e.Aliases {
				idx[Fold(a)] = e.Canonical
			}
		}
		sort.Strings(vals)
		s.values[seg] = vals
		s.aliases[seg] = idx
	}
	return s
}

// Version returns the snapshot version.
func (s *Snapshot) Version() int64 { return s.version }

// Lookup resolves a raw phrase to its canonical value via the exact
// (case-folded, trimmed) alias index.
func (s *Snapshot) Lookup(seg segment.Segment, raw string) (string, bool) {
	idx, ok := s.aliases[seg]
	if !ok {
		return "", false
	}
	canonical, ok := idx[Fold(raw)]
	return canonical, ok
}

// Values returns the sorted canonical values of a segment.
func (s *Snapshot) Values(seg segment.Segment) []string {
	return s.values[seg]
}

// Fold normalizes a phrase for exact lookup: trimmed, lowercased, inner
// whitespace collapsed.
func Fold(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Loader reads the full vocabulary from durable storage.
type Loader interface {
	LoadVocabulary(ctx context.Context) (map[segment.Segment][]Entry, error)
}

// Store publishes the current snapshot. Reads are lock-free; curation
// commits call Reload to rebuild and swap.
type Store struct {
	loader  Loader
	logger  *zap.Logger
	version atomic.Int64
	current atomic.Pointer[Snapshot]
}

// NewStore creates a vocabulary store with an empty initial snapshot.
func NewStore(loader Loader, logger *zap.Logger) *Store {
	s := &Store{loader: loader, logger: logger}
	s.current.Store(NewSnapshot(0, nil))
	return s
}

// Current returns the live snapshot. Never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload rebuilds the snapshot from the loader and swaps it in atomically.
func (s *Store) Reload(ctx context.Context) error {
	entries, err := s.loader.LoadVocabulary(ctx)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	version := s.version.Add(1)
	snap := NewSnapshot(version, entries)
	s.current.Store(snap)

	total := 0
	for _, list := range entries {
		total += len(list)
	}
	s.logger.Info("vocabulary snapshot swapped",
		zap.Int64("version", version),
		zap.Int("canonical_values", total),
	)
	return nil
}
