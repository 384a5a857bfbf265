package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Op is a rule comparison operator.
type Op string

// Comparison operators. Text segments allow EQ/NEQ; numeric segments all six.
const (
	EQ  Op = "EQ"
	NEQ Op = "NEQ"
	GT  Op = "GT"
	GTE Op = "GTE"
	LT  Op = "LT"
	LTE Op = "LTE"
)

// IsValid reports whether op is a known operator.
func (op Op) IsValid() bool {
	switch op {
	case EQ, NEQ, GT, GTE, LT, LTE:
		return true
	}
	return false
}

// allowedOps is the exhaustive operator table per segment kind. Invalid
// operator/kind combinations are rejected at construction, not at evaluation.
var allowedOps = map[segment.Kind]map[Op]bool{
	segment.Text:    {EQ: true, NEQ: true},
	segment.Numeric: {EQ: true, NEQ: true, GT: true, GTE: true, LT: true, LTE: true},
}

// Logic combines rules within a segment filter.
type Logic string

// Logic operators.
const (
	AND Logic = "AND"
	OR  Logic = "OR"
)

// IsValid reports whether l is a known logic operator.
func (l Logic) IsValid() bool { return l == AND || l == OR }

// Rule is a single operator+value constraint. The value is a tagged variant
// keyed by the owning segment's kind.
type Rule struct {
	op     Op
	kind   segment.Kind
	text   string
	number float64
}

// NewTextRule creates a rule for a text segment.
func NewTextRule(op Op, value string) (Rule, error) {
	if !allowedOps[segment.Text][op] {
		return Rule{}, fmt.Errorf("%w: operator %q not allowed for text segments", domain.ErrInvalidFilter, op)
	}
	if strings.TrimSpace(value) == "" {
		return Rule{}, fmt.Errorf("%w: text rule value is required", domain.ErrInvalidFilter)
	}
	return Rule{op: op, kind: segment.Text, text: value}, nil
}

// NewNumericRule creates a rule for a numeric segment.
func NewNumericRule(op Op, value float64) (Rule, error) {
	if !allowedOps[segment.Numeric][op] {
		return Rule{}, fmt.Errorf("%w: operator %q not allowed for numeric segments", domain.ErrInvalidFilter, op)
	}
	return Rule{op: op, kind: segment.Numeric, number: value}, nil
}

// Op returns the rule operator.
func (r Rule) Op() Op { return r.op }

// Kind returns the value kind the rule was built for.
func (r Rule) Kind() segment.Kind { return r.kind }

// Text returns the text value (valid for text rules).
func (r Rule) Text() string { return r.text }

// Number returns the numeric value (valid for numeric rules).
func (r Rule) Number() float64 { return r.number }

// ValueString renders the value in canonical string form, used for
// exclusion-triple comparison and logging.
func (r Rule) ValueString() string {
	if r.kind == segment.Text {
		return r.text
	}
	return strconv.FormatFloat(r.number, 'f', -1, 64)
}

// SegmentFilter is the validated set of rules for one segment.
type SegmentFilter struct {
	seg   segment.Segment
	kind  segment.Kind
	logic Logic
	rules []Rule
}

// NewSegmentFilter validates and creates a SegmentFilter. An empty rule list
// is a construction error, never a silent pass-through.
func NewSegmentFilter(seg segment.Segment, logic Logic, rules []Rule) (SegmentFilter, error) {
	kind, err := segment.KindOf(seg)
	if err != nil {
		return SegmentFilter{}, fmt.Errorf("%w: %v", domain.ErrUnknownSegment, err)
	}
	if !logic.IsValid() {
		return SegmentFilter{}, fmt.Errorf("%w: invalid logic %q for segment %q", domain.ErrInvalidFilter, logic, seg)
	}
	if len(rules) == 0 {
		return SegmentFilter{}, fmt.Errorf("%w: segment %q has no rules", domain.ErrInvalidFilter, seg)
	}
	for _, r := range rules {
		if r.kind != kind {
			return SegmentFilter{}, fmt.Errorf(
				"%w: %s rule on %s segment %q", domain.ErrInvalidFilter, r.kind, kind, seg)
		}
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return SegmentFilter{seg: seg, kind: kind, logic: logic, rules: out}, nil
}

// Segment returns the segment name.
func (f SegmentFilter) Segment() segment.Segment { return f.seg }

// Kind returns the segment kind.
func (f SegmentFilter) Kind() segment.Kind { return f.kind }

// Logic returns how rules combine within the segment.
func (f SegmentFilter) Logic() Logic { return f.logic }

// Rules returns a copy of the rule list.
func (f SegmentFilter) Rules() []Rule {
	out := make([]Rule, len(f.rules))
	copy(out, f.rules)
	return out
}

// QueryFilters is a flat AND of segment filters. Top-level logic is fixed:
// every segment present must independently hold.
type QueryFilters struct {
	filters []SegmentFilter
}

// NewQueryFilters validates and creates a QueryFilters document.
// A duplicate segment is a construction error.
func NewQueryFilters(filters []SegmentFilter) (QueryFilters, error) {
	seen := make(map[segment.Segment]bool, len(filters))
	for _, f := range filters {
		if seen[f.seg] {
			return QueryFilters{}, fmt.Errorf("%w: duplicate segment %q", domain.ErrInvalidFilter, f.seg)
		}
		seen[f.seg] = true
	}
	out := make([]SegmentFilter, len(filters))
	copy(out, filters)
	return QueryFilters{filters: out}, nil
}

// Filters returns a copy of the segment filters.
func (q QueryFilters) Filters() []SegmentFilter {
	out := make([]SegmentFilter, len(q.filters))
	copy(out, q.filters)
	return out
}

// IsEmpty reports whether the document constrains nothing.
func (q QueryFilters) IsEmpty() bool { return len(q.filters) == 0 }

// Get returns the filter for a segment, if present.
func (q QueryFilters) Get(seg segment.Segment) (SegmentFilter, bool) {
	for _, f := range q.filters {
		if f.seg == seg {
			return f, true
		}
	}
	return SegmentFilter{}, false
}

// Has reports whether a segment is filtered.
func (q QueryFilters) Has(seg segment.Segment) bool {
	_, ok := q.Get(seg)
	return ok
}
