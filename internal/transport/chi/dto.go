package chi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnknownSegment   = "unknown_segment"
	codeNotFound         = "not_found"
	codeAlreadyResolved  = "already_resolved"
	codeIndexUnavailable = "index_unavailable"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RuleDTO is one operator+value pair. Value is a string for text segments
// and a number for numeric segments.
type RuleDTO struct {
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

// SegmentFilterDTO is the wire form of one segment's rule set.
type SegmentFilterDTO struct {
	Segment string    `json:"segment"`
	Type    string    `json:"type,omitempty"`
	Logic   string    `json:"logic"`
	Rules   []RuleDTO `json:"rules"`
}

// FiltersDTO is the wire form of a filter document. Top-level logic is
// accepted for compatibility but only AND is valid.
type FiltersDTO struct {
	Logic   string             `json:"logic"`
	Filters []SegmentFilterDTO `json:"filters"`
}

// ExclusionDTO is one excluded (segment, op, value) triple.
type ExclusionDTO struct {
	Segment string `json:"segment"`
	Op      string `json:"op"`
	Value   string `json:"value"`
}

// QueryRequest is the POST /query body. prev_query and filters carry the
// session state; the server itself is stateless.
type QueryRequest struct {
	Query          string         `json:"query"`
	PrevQuery      string         `json:"prev_query,omitempty"`
	Filters        *FiltersDTO    `json:"filters,omitempty"`
	ExcludedValues []ExclusionDTO `json:"excluded_values,omitempty"`
	TopK           int            `json:"top_k,omitempty"`
}

// CompanyDTO is one result row.
type CompanyDTO struct {
	ID          string              `json:"id"`
	Rank        int                 `json:"rank"`
	Score       float64             `json:"score"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	WebsiteURL  string              `json:"website_url,omitempty"`
	City        string              `json:"city,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	Numerics    map[string]float64  `json:"numerics,omitempty"`
	Explanation *string             `json:"explanation"`
}

// QueryResponse is the POST /query body. applied_filters is always present
// so the client can render and carry the effective state.
type QueryResponse struct {
	Companies      []CompanyDTO `json:"companies"`
	AppliedFilters FiltersDTO   `json:"applied_filters"`
	RetrievalText  string       `json:"retrieval_text,omitempty"`
	Reset          bool         `json:"reset"`
	Degraded       bool         `json:"degraded,omitempty"`
}

// UnknownAttributeDTO is one curation queue row.
type UnknownAttributeDTO struct {
	ID          int64  `json:"id"`
	Segment     string `json:"segment"`
	RawValue    string `json:"raw_value"`
	Occurrences int64  `json:"occurrences"`
	FirstSeen   string `json:"first_seen"`
	LastSeen    string `json:"last_seen"`
	Status      string `json:"status"`
	MappedTo    string `json:"mapped_to,omitempty"`
}

func filtersFromDTO(dto *FiltersDTO) (filter.QueryFilters, error) {
	if dto == nil {
		return filter.QueryFilters{}, nil
	}
	if dto.Logic != "" && !strings.EqualFold(dto.Logic, string(filter.AND)) {
		return filter.QueryFilters{}, fmt.Errorf(
			"%w: top-level logic must be AND", domain.ErrInvalidFilter)
	}

	out := make([]filter.SegmentFilter, 0, len(dto.Filters))
	for _, sf := range dto.Filters {
		seg := segment.Segment(sf.Segment)
		kind, err := segment.KindOf(seg)
		if err != nil {
			return filter.QueryFilters{}, fmt.Errorf("%w: %q", domain.ErrUnknownSegment, sf.Segment)
		}

		rules := make([]filter.Rule, 0, len(sf.Rules))
		for _, rd := range sf.Rules {
			rule, err := ruleFromDTO(kind, seg, rd)
			if err != nil {
				return filter.QueryFilters{}, err
			}
			rules = append(rules, rule)
		}

		built, err := filter.NewSegmentFilter(seg, filter.Logic(strings.ToUpper(sf.Logic)), rules)
		if err != nil {
			return filter.QueryFilters{}, err
		}
		out = append(out, built)
	}
	return filter.NewQueryFilters(out)
}

func ruleFromDTO(kind segment.Kind, seg segment.Segment, rd RuleDTO) (filter.Rule, error) {
	op := filter.Op(strings.ToUpper(rd.Op))

	if kind == segment.Numeric {
		var num float64
		if err := json.Unmarshal(rd.Value, &num); err != nil {
			// Numbers quoted as strings are accepted.
			var s string
			if err := json.Unmarshal(rd.Value, &s); err != nil {
				return filter.Rule{}, fmt.Errorf(
					"%w: segment %q expects a numeric value", domain.ErrInvalidFilter, seg)
			}
			num, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return filter.Rule{}, fmt.Errorf(
					"%w: segment %q expects a numeric value, got %q", domain.ErrInvalidFilter, seg, s)
			}
		}
		return filter.NewNumericRule(op, num)
	}

	var s string
	if err := json.Unmarshal(rd.Value, &s); err != nil {
		return filter.Rule{}, fmt.Errorf(
			"%w: segment %q expects a string value", domain.ErrInvalidFilter, seg)
	}
	return filter.NewTextRule(op, s)
}

func filtersToDTO(q filter.QueryFilters) FiltersDTO {
	dto := FiltersDTO{Logic: string(filter.AND), Filters: []SegmentFilterDTO{}}
	for _, sf := range q.Filters() {
		sd := SegmentFilterDTO{
			Segment: string(sf.Segment()),
			Type:    string(sf.Kind()),
			Logic:   string(sf.Logic()),
		}
		for _, r := range sf.Rules() {
			var raw json.RawMessage
			if r.Kind() == segment.Numeric {
				raw, _ = json.Marshal(r.Number())
			} else {
				raw, _ = json.Marshal(r.Text())
			}
			sd.Rules = append(sd.Rules, RuleDTO{Op: string(r.Op()), Value: raw})
		}
		dto.Filters = append(dto.Filters, sd)
	}
	return dto
}

func exclusionsFromDTO(dtos []ExclusionDTO) ([]filter.Exclusion, error) {
	out := make([]filter.Exclusion, 0, len(dtos))
	for _, d := range dtos {
		seg := segment.Segment(d.Segment)
		if !segment.IsValid(seg) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSegment, d.Segment)
		}
		op := filter.Op(strings.ToUpper(d.Op))
		if !op.IsValid() {
			return nil, fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidFilter, d.Op)
		}
		out = append(out, filter.Exclusion{Segment: seg, Op: op, Value: d.Value})
	}
	return out, nil
}

func unknownToDTO(ua domain.UnknownAttribute) UnknownAttributeDTO {
	return UnknownAttributeDTO{
		ID:          ua.ID,
		Segment:     string(ua.Segment),
		RawValue:    ua.RawValue,
		Occurrences: ua.Occurrences,
		FirstSeen:   ua.FirstSeen.UTC().Format(time.RFC3339),
		LastSeen:    ua.LastSeen.UTC().Format(time.RFC3339),
		Status:      string(ua.Status),
		MappedTo:    ua.MappedTo,
	}
}
