// Package merge reconciles freshly inferred filters with the user's
// previously applied filters and session exclusions into one authoritative
// filter document.
package merge

import (
	"fmt"

	"github.com/agext/levenshtein"

	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/vocab"
)

// Config holds the merge heuristics.
type Config struct {
	// ResetSimilarity: when the new query's similarity to the previous one
	// falls below this ratio the edit counts as a wholesale replacement and
	// prior filters plus exclusions are cleared before merging (default 0.4).
	ResetSimilarity float64
}

func (c *Config) applyDefaults() {
	if c.ResetSimilarity <= 0 {
		c.ResetSimilarity = 0.4
	}
}

// Engine merges filter documents under strict precedence rules.
type Engine struct {
	cfg Config
}

// New creates a merge engine.
func New(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg}
}

// IsReset reports whether the query edit is a significant reset: the user
// cleared the text entirely or replaced it wholesale. A reset clears
// previously applied filters and exclusions before the merge; a small
// incremental edit does not.
func (e *Engine) IsReset(prevQuery, newQuery string) bool {
	prev := vocab.Fold(prevQuery)
	next := vocab.Fold(newQuery)
	if prev == "" {
		return false
	}
	if next == "" {
		return true
	}
	return levenshtein.Similarity(prev, next, nil) < e.cfg.ResetSimilarity
}

// Merge combines inferred filters with previously applied ones.
//
// Precedence:
//  1. Excluded (segment, op, value) triples never appear, even when
//     re-inferred or carried from prior state.
//  2. A segment present in inferred supersedes the prior segment entirely
//     (fresh intent wins).
//  3. Prior segments the new query does not mention carry forward unchanged
//     (sticky filters).
//  4. Segments left with zero rules are dropped.
//
// The result is canonical: one SegmentFilter per segment, stable order.
func (e *Engine) Merge(
	inferred, prior filter.QueryFilters, exclusions filter.ExclusionSet,
) (filter.QueryFilters, error) {
	merged := make(map[segment.Segment]filter.SegmentFilter)

	for _, f := range inferred.Filters() {
		kept, err := withoutExcluded(f, exclusions)
		if err != nil {
			return filter.QueryFilters{}, err
		}
		if kept != nil {
			merged[f.Segment()] = *kept
		}
	}

	for _, f := range prior.Filters() {
		if _, ok := merged[f.Segment()]; ok {
			continue
		}
		kept, err := withoutExcluded(f, exclusions)
		if err != nil {
			return filter.QueryFilters{}, err
		}
		if kept != nil {
			merged[f.Segment()] = *kept
		}
	}

	ordered := make([]filter.SegmentFilter, 0, len(merged))
	for _, seg := range segment.All() {
		if f, ok := merged[seg]; ok {
			ordered = append(ordered, f)
		}
	}
	return filter.NewQueryFilters(ordered)
}

// withoutExcluded strips excluded rules. Returns nil when nothing survives.
func withoutExcluded(f filter.SegmentFilter, exclusions filter.ExclusionSet) (*filter.SegmentFilter, error) {
	rules := f.Rules()
	kept := rules[:0]
	for _, r := range rules {
		if !exclusions.Excludes(f.Segment(), r) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}
	out, err := filter.NewSegmentFilter(f.Segment(), f.Logic(), kept)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s filter: %w", f.Segment(), err)
	}
	return &out, nil
}
