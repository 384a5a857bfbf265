// Package segment defines the closed set of filterable company attributes.
package segment

import "fmt"

// Segment names a filterable company attribute.
type Segment string

// Kind partitions segments by value type, which determines the allowed
// comparison operators.
type Kind string

// Segment kinds.
const (
	Text    Kind = "text"
	Numeric Kind = "numeric"
)

// The closed segment registry. Adding a segment means adding it here, to the
// index schema, and to the vocabulary; nothing else discovers segments
// dynamically.
const (
	Location       Segment = "location"
	Industries     Segment = "industries"
	TargetMarkets  Segment = "target_markets"
	FundingStage   Segment = "funding_stage"
	BusinessModels Segment = "business_models"
	RevenueModels  Segment = "revenue_models"
	EmployeeCount  Segment = "employee_count"
	FundingAmount  Segment = "funding_amount"
	StageOrder     Segment = "stage_order"
)

var kinds = map[Segment]Kind{
	Location:       Text,
	Industries:     Text,
	TargetMarkets:  Text,
	FundingStage:   Text,
	BusinessModels: Text,
	RevenueModels:  Text,
	EmployeeCount:  Numeric,
	FundingAmount:  Numeric,
	StageOrder:     Numeric,
}

// multiValued marks text segments whose documents carry a list of values.
var multiValued = map[Segment]bool{
	Industries:     true,
	TargetMarkets:  true,
	BusinessModels: true,
	RevenueModels:  true,
}

// all fixes the canonical segment order used everywhere output must be stable.
var all = []Segment{
	Location,
	Industries,
	TargetMarkets,
	FundingStage,
	BusinessModels,
	RevenueModels,
	EmployeeCount,
	FundingAmount,
	StageOrder,
}

// KindOf returns the kind of a segment, or an error for names outside the
// registry.
func KindOf(seg Segment) (Kind, error) {
	kind, ok := kinds[seg]
	if !ok {
		return "", fmt.Errorf("unknown segment %q", seg)
	}
	return kind, nil
}

// IsValid reports whether seg is in the registry.
func IsValid(seg Segment) bool {
	_, ok := kinds[seg]
	return ok
}

// IsMultiValued reports whether documents store a list for this segment.
func IsMultiValued(seg Segment) bool { return multiValued[seg] }

// All returns every segment in canonical order.
func All() []Segment {
	out := make([]Segment, len(all))
	copy(out, all)
	return out
}

// TextSegments returns the text segments in canonical order. These are the
// segments backed by the curated vocabulary.
func TextSegments() []Segment {
	out := make([]Segment, 0, len(all))
	for _, seg := range all {
		if kinds[seg] == Text {
			out = append(out, seg)
		}
	}
	return out
}
