package filter

import (
	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Exclusion is a rule the user explicitly removed. Session-scoped and
// additive: once present, inference must never re-add the exact
// (segment, op, value) triple until an explicit full reset.
type Exclusion struct {
	Segment segment.Segment
	Op      Op
	Value   string
}

// ExclusionSet answers "is this rule excluded" in O(1).
type ExclusionSet struct {
	entries map[Exclusion]struct{}
}

// NewExclusionSet builds a set from the session's exclusion list.
func NewExclusionSet(entries []Exclusion) ExclusionSet {
	m := make(map[Exclusion]struct{}, len(entries))
	for _, e := range entries {
		m[e] = struct{}{}
	}
	return ExclusionSet{entries: m}
}

// Excludes reports whether the rule for seg is in the set.
func (s ExclusionSet) Excludes(seg segment.Segment, r Rule) bool {
	if s.entries == nil {
		return false
	}
	_, ok := s.entries[Exclusion{Segment: seg, Op: r.op, Value: r.ValueString()}]
	return ok
}

// Len returns the number of excluded triples.
func (s ExclusionSet) Len() int { return len(s.entries) }
