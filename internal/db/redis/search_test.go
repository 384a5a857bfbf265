package redis

import (
	"testing"

	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

func textRule(t *testing.T, op filter.Op, value string) filter.Rule {
	t.Helper()
	r, err := filter.NewTextRule(op, value)
	if err != nil {
		t.Fatalf("NewTextRule: %v", err)
	}
	return r
}

func numericRule(t *testing.T, op filter.Op, value float64) filter.Rule {
	t.Helper()
	r, err := filter.NewNumericRule(op, value)
	if err != nil {
		t.Fatalf("NewNumericRule: %v", err)
	}
	return r
}

func segmentFilter(t *testing.T, seg segment.Segment, logic filter.Logic, rules ...filter.Rule) filter.SegmentFilter {
	t.Helper()
	f, err := filter.NewSegmentFilter(seg, logic, rules)
	if err != nil {
		t.Fatalf("NewSegmentFilter: %v", err)
	}
	return f
}

func filters(t *testing.T, sfs ...filter.SegmentFilter) filter.QueryFilters {
	t.Helper()
	q, err := filter.NewQueryFilters(sfs)
	if err != nil {
		t.Fatalf("NewQueryFilters: %v", err)
	}
	return q
}

func TestBuildFilter_Empty(t *testing.T) {
	if got := buildFilter(filter.QueryFilters{}); got != "" {
		t.Errorf("buildFilter(empty) = %q, want empty", got)
	}
}

func TestBuildFilter_TagEquality(t *testing.T) {
	q := filters(t, segmentFilter(t, segment.Industries, filter.OR, textRule(t, filter.EQ, "Fintech")))
	want := "@industries:{Fintech}"
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_TagEscapesSpecialChars(t *testing.T) {
	q := filters(t, segmentFilter(t, segment.Location, filter.OR, textRule(t, filter.EQ, "New York")))
	want := `@location:{New\ York}`
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}

	q = filters(t, segmentFilter(t, segment.Industries, filter.OR, textRule(t, filter.EQ, "B2B-SaaS (US)")))
	want = `@industries:{B2B\-SaaS\ \(US\)}`
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_TagNegation(t *testing.T) {
	q := filters(t, segmentFilter(t, segment.Location, filter.AND, textRule(t, filter.NEQ, "New York")))
	want := `-@location:{New\ York}`
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_ORGroup(t *testing.T) {
	q := filters(t, segmentFilter(t, segment.Industries, filter.OR,
		textRule(t, filter.EQ, "Fintech"), textRule(t, filter.EQ, "Logistics")))
	want := "(@industries:{Fintech} | @industries:{Logistics})"
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_ANDGroupJoinsWithSpace(t *testing.T) {
	q := filters(t, segmentFilter(t, segment.EmployeeCount, filter.AND,
		numericRule(t, filter.GTE, 50), numericRule(t, filter.LTE, 100)))
	want := "@employee_count:[50 +inf] @employee_count:[-inf 100]"
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_NumericOperators(t *testing.T) {
	cases := []struct {
		op   filter.Op
		want string
	}{
		{filter.GT, "@employee_count:[(50 +inf]"},
		{filter.GTE, "@employee_count:[50 +inf]"},
		{filter.LT, "@employee_count:[-inf (50]"},
		{filter.LTE, "@employee_count:[-inf 50]"},
		{filter.EQ, "@employee_count:[50 50]"},
		// NEQ must not match documents missing the field, so it compiles
		// to a presence-anchored union rather than a negated range.
		{filter.NEQ, "(@employee_count:[-inf (50] | @employee_count:[(50 +inf])"},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			q := filters(t, segmentFilter(t, segment.EmployeeCount, filter.AND, numericRule(t, tc.op, 50)))
			if got := buildFilter(q); got != tc.want {
				t.Errorf("buildFilter = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildFilter_SegmentsJoinWithImplicitAND(t *testing.T) {
	q := filters(t,
		segmentFilter(t, segment.Industries, filter.OR,
			textRule(t, filter.EQ, "Fintech"), textRule(t, filter.EQ, "Logistics")),
		segmentFilter(t, segment.EmployeeCount, filter.AND, numericRule(t, filter.GT, 50)),
	)
	want := "(@industries:{Fintech} | @industries:{Logistics}) @employee_count:[(50 +inf]"
	if got := buildFilter(q); got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}
