package filter

import (
	"strings"

	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Document is the attribute view of a company for local rule evaluation.
// Text segments may be multi-valued; a numeric segment absent from Numerics
// is treated as null and fails every numeric rule.
type Document struct {
	Tags     map[segment.Segment][]string
	Numerics map[segment.Segment]float64
}

// Evaluate reports whether doc satisfies every segment filter in q.
// This is the reference semantics the index translation must agree with.
func Evaluate(doc Document, q QueryFilters) bool {
	for _, f := range q.filters {
		if !evaluateSegment(doc, f) {
			return false
		}
	}
	return true
}

func evaluateSegment(doc Document, f SegmentFilter) bool {
	for _, r := range f.rules {
		matched := evaluateRule(doc, f.seg, r)
		if f.logic == OR && matched {
			return true
		}
		if f.logic == AND && !matched {
			return false
		}
	}
	return f.logic == AND
}

func evaluateRule(doc Document, seg segment.Segment, r Rule) bool {
	if r.kind == segment.Text {
		return evaluateTextRule(doc.Tags[seg], r)
	}
	value, ok := doc.Numerics[seg]
	if !ok {
		// Null attribute never matches a numeric rule.
		return false
	}
	return evaluateNumericRule(value, r)
}

func evaluateTextRule(values []string, r Rule) bool {
	contains := false
	for _, v := range values {
		if strings.EqualFold(v, r.text) {
			contains = true
			break
		}
	}
	if r.op == EQ {
		return contains
	}
	return !contains
}

func evaluateNumericRule(value float64, r Rule) bool {
	switch r.op {
	case EQ:
		return value == r.number
	case NEQ:
		return value != r.number
	case GT:
		return value > r.number
	case GTE:
		return value >= r.number
	case LT:
		return value < r.number
	case LTE:
		return value <= r.number
	}
	return false
}
