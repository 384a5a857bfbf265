package query

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/merge"
	"github.com/lattice-vc/scout/internal/normalize"
	"github.com/lattice-vc/scout/internal/repository/company"
	"github.com/lattice-vc/scout/internal/vocab"
)

// --- Mocks ---

type mockExtractor struct {
	raw   []domain.RawFilter
	err   error
	calls int
}

func (m *mockExtractor) ExtractAttributes(_ context.Context, _ string) ([]domain.RawFilter, error) {
	m.calls++
	return m.raw, m.err
}

type mockRewriter struct {
	text string
}

func (m *mockRewriter) RewriteQuery(_ context.Context, query, _ string) string {
	if m.text != "" {
		return m.text
	}
	return query
}

type mockExplainer struct {
	explanations []string
	err          error
	called       bool
	lastFilters  string
}

func (m *mockExplainer) ExplainBatch(_ context.Context, _, appliedFilters string, summaries []domain.ResultSummary) ([]string, error) {
	m.called = true
	m.lastFilters = appliedFilters
	if m.err != nil {
		return nil, m.err
	}
	if m.explanations != nil {
		return m.explanations, nil
	}
	out := make([]string, len(summaries))
	for i, s := range summaries {
		out[i] = "matches: " + s.Name
	}
	return out, nil
}

type mockSearcher struct {
	results     []result.Ranked
	err         error
	lastText    string
	lastFilters filter.QueryFilters
	lastTopK    int
}

func (m *mockSearcher) Search(_ context.Context, retrievalText string, filters filter.QueryFilters, topK int) ([]result.Ranked, error) {
	m.lastText = retrievalText
	m.lastFilters = filters
	m.lastTopK = topK
	return m.results, m.err
}

type mockCompanies struct {
	records map[string]company.Record
	err     error
}

func (m *mockCompanies) GetByIDs(_ context.Context, ids []string) (map[string]company.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.records != nil {
		return m.records, nil
	}
	return map[string]company.Record{}, nil
}

// mockUnknowns signals on recorded for tests that wait on the async sink.
type mockUnknowns struct {
	recorded chan recordedUnknown
}

type recordedUnknown struct {
	Segment  segment.Segment
	RawValue string
}

func newMockUnknowns() *mockUnknowns {
	return &mockUnknowns{recorded: make(chan recordedUnknown, 8)}
}

func (m *mockUnknowns) Record(_ context.Context, seg segment.Segment, rawValue string) error {
	m.recorded <- recordedUnknown{Segment: seg, RawValue: rawValue}
	return nil
}

type mockSearchLog struct {
	inserted chan loggedSearch
}

type loggedSearch struct {
	Query       string
	FiltersJSON []byte
	ResultCount int
}

func newMockSearchLog() *mockSearchLog {
	return &mockSearchLog{inserted: make(chan loggedSearch, 8)}
}

func (m *mockSearchLog) Insert(_ context.Context, query string, filtersJSON []byte, resultCount int) error {
	m.inserted <- loggedSearch{Query: query, FiltersJSON: filtersJSON, ResultCount: resultCount}
	return nil
}

type staticLoader struct {
	entries map[segment.Segment][]vocab.Entry
}

func (l *staticLoader) LoadVocabulary(_ context.Context) (map[segment.Segment][]vocab.Entry, error) {
	return l.entries, nil
}

// --- Fixtures ---

type deps struct {
	extractor *mockExtractor
	rewriter  *mockRewriter
	explainer *mockExplainer
	searcher  *mockSearcher
	companies *mockCompanies
	unknowns  *mockUnknowns
	searchLog *mockSearchLog
}

func newTestService(t *testing.T) (*Service, *deps) {
	t.Helper()
	d := &deps{
		extractor: &mockExtractor{},
		rewriter:  &mockRewriter{},
		explainer: &mockExplainer{},
		searcher:  &mockSearcher{},
		companies: &mockCompanies{},
		unknowns:  newMockUnknowns(),
		searchLog: newMockSearchLog(),
	}

	vocabs := vocab.NewStore(&staticLoader{entries: map[segment.Segment][]vocab.Entry{
		segment.Industries: {
			{Canonical: "Fintech", Aliases: []string{"Financial Technology"}},
			{Canonical: "Healthcare IT", Aliases: []string{"Health IT"}},
		},
		segment.Location: {
			{Canonical: "New York", Aliases: []string{"NYC"}},
		},
	}}, zap.NewNop())
	if err := vocabs.Reload(context.Background()); err != nil {
		t.Fatalf("vocab reload: %v", err)
	}

	svc := New(
		d.extractor, d.rewriter, d.explainer,
		d.searcher, d.companies, d.unknowns, d.searchLog,
		vocabs, normalize.New(normalize.Config{}), merge.New(merge.Config{}),
		zap.NewNop(),
		time.Second, time.Second,
	)
	return svc, d
}

func mustTextFilter(t *testing.T, seg segment.Segment, values ...string) filter.SegmentFilter {
	t.Helper()
	rules := make([]filter.Rule, 0, len(values))
	for _, v := range values {
		r, err := filter.NewTextRule(filter.EQ, v)
		if err != nil {
			t.Fatalf("NewTextRule: %v", err)
		}
		rules = append(rules, r)
	}
	f, err := filter.NewSegmentFilter(seg, filter.OR, rules)
	if err != nil {
		t.Fatalf("NewSegmentFilter: %v", err)
	}
	return f
}

func mustFilters(t *testing.T, filters ...filter.SegmentFilter) filter.QueryFilters {
	t.Helper()
	q, err := filter.NewQueryFilters(filters)
	if err != nil {
		t.Fatalf("NewQueryFilters: %v", err)
	}
	return q
}

func waitUnknown(t *testing.T, sink *mockUnknowns) recordedUnknown {
	t.Helper()
	select {
	case rec := <-sink.recorded:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the unknown-attribute sink")
		return recordedUnknown{}
	}
}

func waitSearchLog(t *testing.T, log *mockSearchLog) loggedSearch {
	t.Helper()
	select {
	case entry := <-log.inserted:
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the search log write")
		return loggedSearch{}
	}
}
