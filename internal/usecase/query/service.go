package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/filter"
	"github.com/lattice-vc/scout/internal/domain/result"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/logger"
	"github.com/lattice-vc/scout/internal/merge"
	"github.com/lattice-vc/scout/internal/metrics"
	"github.com/lattice-vc/scout/internal/normalize"
	"github.com/lattice-vc/scout/internal/vocab"
)

// Request is one conversational search turn. The client carries session
// state (prior query, filters, exclusions); the server is stateless.
type Request struct {
	Query        string
	PriorQuery   string
	PriorFilters filter.QueryFilters
	Exclusions   []filter.Exclusion
	TopK         int
}

// Item is one assembled search result.
type Item struct {
	CompanyID   string
	Rank        int
	Score       float64
	Name        string
	Description string
	WebsiteURL  string
	City        string
	Tags        map[string][]string
	Numerics    map[string]float64
	Explanation *string
}

// Response is the assembled outcome of a search turn.
type Response struct {
	Items          []Item
	AppliedFilters filter.QueryFilters
	RetrievalText  string
	Reset          bool
	// Degraded is set when attribute extraction was unavailable and the
	// turn ran against prior filters only.
	Degraded bool
}

// Service runs the query-understanding pipeline: reset detection, attribute
// extraction, vocabulary normalization, filter merge, retrieval and assembly.
type Service struct {
	extractor domain.AttributeExtractor
	rewriter  domain.QueryRewriter
	explainer domain.Explainer
	searcher  Searcher
	companies CompanyReader
	unknowns  UnknownSink
	searchLog SearchLogger
	vocabs    *vocab.Store
	norm      *normalize.Normalizer
	merger    *merge.Engine
	logger    *zap.Logger

	extractionTimeout  time.Duration
	explanationTimeout time.Duration
}

// New creates the pipeline service.
func New(
	extractor domain.AttributeExtractor,
	rewriter domain.QueryRewriter,
	explainer domain.Explainer,
	searcher Searcher,
	companies CompanyReader,
	unknowns UnknownSink,
	searchLog SearchLogger,
	vocabs *vocab.Store,
	norm *normalize.Normalizer,
	merger *merge.Engine,
	log *zap.Logger,
	extractionTimeout, explanationTimeout time.Duration,
) *Service {
	return &Service{
		extractor:          extractor,
		rewriter:           rewriter,
		explainer:          explainer,
		searcher:           searcher,
		companies:          companies,
		unknowns:           unknowns,
		searchLog:          searchLog,
		vocabs:             vocabs,
		norm:               norm,
		merger:             merger,
		logger:             log,
		extractionTimeout:  extractionTimeout,
		explanationTimeout: explanationTimeout,
	}
}

// Execute runs one search turn end to end.
func (s *Service) Execute(ctx context.Context, req Request) (Response, error) {
	log := logger.FromContext(ctx)

	prior := req.PriorFilters
	exclusions := filter.NewExclusionSet(req.Exclusions)
	reset := s.merger.IsReset(req.PriorQuery, req.Query)
	if reset {
		// A wholesale query replacement starts a fresh session: prior
		// filters and exclusions no longer reflect intent.
		prior = filter.QueryFilters{}
		exclusions = filter.NewExclusionSet(nil)
		metrics.MergeResetsTotal.Inc()
	}

	// Resubmitting identical query text carries no new intent: the user
	// adjusted filters, not the query. Re-running extraction here would
	// stomp those per-segment adjustments with re-inferred rules.
	inferred, degraded := filter.QueryFilters{}, false
	if fold := vocab.Fold(req.Query); fold == "" || fold != vocab.Fold(req.PriorQuery) {
		inferred, degraded = s.inferFilters(ctx, req.Query)
	}

	merged, err := s.merger.Merge(inferred, prior, exclusions)
	if err != nil {
		return Response{}, fmt.Errorf("merge filters: %w", err)
	}

	filtersDesc := describeFilters(merged)

	retrievalText := ""
	if strings.TrimSpace(req.Query) != "" {
		retrievalText = s.rewriter.RewriteQuery(ctx, req.Query, filtersDesc)
	}

	ranked, err := s.searcher.Search(ctx, retrievalText, merged, req.TopK)
	if err != nil {
		return Response{}, err
	}

	items := s.assemble(ctx, req.Query, filtersDesc, ranked)

	s.logSearch(ctx, req.Query, merged, len(items), log)

	return Response{
		Items:          items,
		AppliedFilters: merged,
		RetrievalText:  retrievalText,
		Reset:          reset,
		Degraded:       degraded,
	}, nil
}

// inferFilters extracts and normalizes filters from the query text.
// Extraction failure degrades the turn to prior filters only rather than
// failing it.
func (s *Service) inferFilters(ctx context.Context, query string) (filter.QueryFilters, bool) {
	if strings.TrimSpace(query) == "" {
		return filter.QueryFilters{}, false
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.extractionTimeout)
	defer cancel()

	raw, err := s.extractor.ExtractAttributes(extractCtx, query)
	if err != nil {
		logger.FromContext(ctx).Warn("attribute extraction unavailable, searching with prior filters only",
			zap.Error(err))
		return filter.QueryFilters{}, true
	}

	return s.normalizeExtracted(ctx, raw), false
}

// normalizeExtracted turns raw extraction output into a validated filter
// document. Unknown text values are dropped from the turn and recorded for
// curation; malformed entries are skipped.
func (s *Service) normalizeExtracted(ctx context.Context, raw []domain.RawFilter) filter.QueryFilters {
	log := logger.FromContext(ctx)
	snap := s.vocabs.Current()

	bySegment := make(map[segment.Segment]filter.SegmentFilter)
	ordered := make([]filter.SegmentFilter, 0, len(raw))

	for _, rf := range raw {
		seg := segment.Segment(rf.Segment)
		kind, err := segment.KindOf(seg)
		if err != nil {
			log.Warn("extractor produced unknown segment", zap.String("segment", rf.Segment))
			continue
		}
		if _, dup := bySegment[seg]; dup {
			continue
		}

		var rules []filter.Rule
		for _, rr := range rf.Rules {
			rule, ok := s.buildRule(ctx, snap, seg, kind, rr, log)
			if ok {
				rules = append(rules, rule)
			}
		}
		if len(rules) == 0 {
			continue
		}

		logic := filter.Logic(rf.Logic)
		if !logic.IsValid() {
			logic = filter.OR
		}
		sf, err := filter.NewSegmentFilter(seg, logic, rules)
		if err != nil {
			log.Warn("dropping invalid extracted filter", zap.String("segment", string(seg)), zap.Error(err))
			continue
		}
		bySegment[seg] = sf
		ordered = append(ordered, sf)
	}

	qf, err := filter.NewQueryFilters(ordered)
	if err != nil {
		// Duplicates are filtered above; construction cannot fail here.
		log.Error("inferred filters failed validation", zap.Error(err))
		return filter.QueryFilters{}
	}
	return qf
}

func (s *Service) buildRule(
	ctx context.Context, snap *vocab.Snapshot,
	seg segment.Segment, kind segment.Kind,
	rr domain.RawRule, log *zap.Logger,
) (filter.Rule, bool) {
	op := filter.Op(rr.Op)
	if !op.IsValid() {
		log.Warn("extractor produced unknown operator", zap.String("op", rr.Op))
		return filter.Rule{}, false
	}

	if kind == segment.Numeric {
		value, err := strconv.ParseFloat(strings.TrimSpace(rr.Value), 64)
		if err != nil {
			log.Warn("dropping non-numeric value for numeric segment",
				zap.String("segment", string(seg)), zap.String("value", rr.Value))
			return filter.Rule{}, false
		}
		rule, err := filter.NewNumericRule(op, value)
		if err != nil {
			log.Warn("dropping invalid numeric rule", zap.Error(err))
			return filter.Rule{}, false
		}
		return rule, true
	}

	match, ok := s.norm.Normalize(snap, seg, rr.Value)
	if !ok {
		metrics.NormalizationTotal.WithLabelValues(string(seg), "unknown").Inc()
		s.recordUnknown(ctx, seg, rr.Value)
		return filter.Rule{}, false
	}
	outcome := "fuzzy"
	if match.Confidence == 1.0 {
		outcome = "exact"
	}
	metrics.NormalizationTotal.WithLabelValues(string(seg), outcome).Inc()

	rule, err := filter.NewTextRule(op, match.Canonical)
	if err != nil {
		log.Warn("dropping invalid text rule", zap.Error(err))
		return filter.Rule{}, false
	}
	return rule, true
}

// recordUnknown writes to the curation sink without blocking or failing the
// search turn.
func (s *Service) recordUnknown(ctx context.Context, seg segment.Segment, rawValue string) {
	folded := vocab.Fold(rawValue)
	if folded == "" {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		sinkCtx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := s.unknowns.Record(sinkCtx, seg, folded); err != nil {
			s.logger.Warn("failed to record unknown attribute",
				zap.String("segment", string(seg)), zap.String("value", folded), zap.Error(err))
		}
	}()
}

// assemble enriches ranked hits with record-store fields and explanations.
// The two lookups depend only on the ranked list and run concurrently.
func (s *Service) assemble(ctx context.Context, query, filtersDesc string, ranked []result.Ranked) []Item {
	if len(ranked) == 0 {
		return []Item{}
	}

	ids := make([]string, len(ranked))
	summaries := make([]domain.ResultSummary, len(ranked))
	for i := range ranked {
		ids[i] = ranked[i].CompanyID()
		summaries[i] = domain.ResultSummary{Name: ranked[i].Name(), Description: ranked[i].Description()}
	}

	var records map[string]companyRecord
	var explanations []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.companies.GetByIDs(gctx, ids)
		if err != nil {
			// Supplemental fields only. A record-store outage must not
			// fail a turn that already has ranked results.
			s.logger.Warn("company record fetch failed, serving without supplemental fields",
				zap.Int("ids", len(ids)), zap.Error(err))
			return nil
		}
		records = make(map[string]companyRecord, len(recs))
		for id, r := range recs {
			records[id] = companyRecord{WebsiteURL: r.WebsiteURL, City: r.City}
		}
		return nil
	})
	if strings.TrimSpace(query) != "" {
		g.Go(func() error {
			explanations = s.explain(gctx, query, filtersDesc, summaries)
			return nil
		})
	}
	_ = g.Wait()

	items := make([]Item, len(ranked))
	for i := range ranked {
		r := &ranked[i]
		item := Item{
			CompanyID:   r.CompanyID(),
			Rank:        r.Rank(),
			Score:       r.Score(),
			Name:        r.Name(),
			Description: r.Description(),
			Tags:        r.Tags(),
			Numerics:    r.Numerics(),
		}
		if rec, ok := records[r.CompanyID()]; ok {
			item.WebsiteURL = rec.WebsiteURL
			item.City = rec.City
		}
		if explanations != nil {
			item.Explanation = &explanations[i]
		}
		items[i] = item
	}
	return items
}

type companyRecord struct {
	WebsiteURL string
	City       string
}

// explain generates batched explanations under a bounded timeout. Any
// failure degrades to nil explanations, never to a failed turn.
func (s *Service) explain(ctx context.Context, query, filtersDesc string, summaries []domain.ResultSummary) []string {
	explainCtx, cancel := context.WithTimeout(ctx, s.explanationTimeout)
	defer cancel()

	explanations, err := s.explainer.ExplainBatch(explainCtx, query, filtersDesc, summaries)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(explainCtx.Err(), context.DeadlineExceeded) {
			metrics.ExplanationTimeoutsTotal.Inc()
		}
		logger.FromContext(ctx).Warn("explanation generation degraded to null", zap.Error(err))
		return nil
	}
	return explanations
}

// logSearch records the turn for analytics off the request path.
func (s *Service) logSearch(ctx context.Context, query string, filters filter.QueryFilters, resultCount int, log *zap.Logger) {
	payload, err := json.Marshal(filtersDocument(filters))
	if err != nil {
		log.Warn("failed to encode search log filters", zap.Error(err))
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		logCtx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := s.searchLog.Insert(logCtx, query, payload, resultCount); err != nil {
			s.logger.Warn("failed to write search log", zap.Error(err))
		}
	}()
}

type filtersJSON struct {
	Logic   string            `json:"logic"`
	Filters []segmentFiltJSON `json:"filters"`
}

type segmentFiltJSON struct {
	Segment string     `json:"segment"`
	Logic   string     `json:"logic"`
	Rules   []ruleJSON `json:"rules"`
}

type ruleJSON struct {
	Op    string `json:"op"`
	Value string `json:"value"`
}

func filtersDocument(q filter.QueryFilters) filtersJSON {
	doc := filtersJSON{Logic: string(filter.AND), Filters: []segmentFiltJSON{}}
	for _, sf := range q.Filters() {
		sj := segmentFiltJSON{Segment: string(sf.Segment()), Logic: string(sf.Logic())}
		for _, r := range sf.Rules() {
			sj.Rules = append(sj.Rules, ruleJSON{Op: string(r.Op()), Value: r.ValueString()})
		}
		doc.Filters = append(doc.Filters, sj)
	}
	return doc
}

// describeFilters renders applied filters for the rewrite prompt.
func describeFilters(q filter.QueryFilters) string {
	if q.IsEmpty() {
		return "none"
	}
	var parts []string
	for _, sf := range q.Filters() {
		var vals []string
		for _, r := range sf.Rules() {
			vals = append(vals, fmt.Sprintf("%s %s", r.Op(), r.ValueString()))
		}
		parts = append(parts, fmt.Sprintf("%s: %s", sf.Segment(), strings.Join(vals, ", ")))
	}
	return strings.Join(parts, "; ")
}
