package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/vocab"
	analyticsuc "github.com/lattice-vc/scout/internal/usecase/analytics"
	curationuc "github.com/lattice-vc/scout/internal/usecase/curation"
	healthuc "github.com/lattice-vc/scout/internal/usecase/health"
	queryuc "github.com/lattice-vc/scout/internal/usecase/query"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the scout API.
type Server struct {
	pipeline      *queryuc.Service
	curation      *curationuc.Service
	analytics     *analyticsuc.Service
	health        *healthuc.Service
	vocabs        *vocab.Store
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline *queryuc.Service,
	curation *curationuc.Service,
	analytics *analyticsuc.Service,
	health *healthuc.Service,
	vocabs *vocab.Store,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline:  pipeline,
		curation:  curation,
		analytics: analytics,
		health:    health,
		vocabs:    vocabs,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownSegment, http.StatusBadRequest, codeUnknownSegment),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyResolved),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/query", s.Query)
	r.Get("/filter-options", s.FilterOptions)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/unknown-attributes", s.ListUnknownAttributes)
		r.Post("/unknown-attributes/approve", s.ApproveUnknownAttribute)
		r.Post("/unknown-attributes/map", s.MapUnknownAttribute)
		r.Get("/search-analytics", s.SearchAnalytics)
	})
}

// Query handles POST /query: one conversational search turn.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	priorFilters, err := filtersFromDTO(req.Filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	exclusions, err := exclusionsFromDTO(req.ExcludedValues)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.pipeline.Execute(r.Context(), queryuc.Request{
		Query:        req.Query,
		PriorQuery:   req.PrevQuery,
		PriorFilters: priorFilters,
		Exclusions:   exclusions,
		TopK:         req.TopK,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	companies := make([]CompanyDTO, len(resp.Items))
	for i, item := range resp.Items {
		companies[i] = CompanyDTO{
			ID:          item.CompanyID,
			Rank:        item.Rank,
			Score:       item.Score,
			Name:        item.Name,
			Description: item.Description,
			WebsiteURL:  item.WebsiteURL,
			City:        item.City,
			Attributes:  item.Tags,
			Numerics:    item.Numerics,
			Explanation: item.Explanation,
		}
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Companies:      companies,
		AppliedFilters: filtersToDTO(resp.AppliedFilters),
		RetrievalText:  resp.RetrievalText,
		Reset:          resp.Reset,
		Degraded:       resp.Degraded,
	})
}

// FilterOptions handles GET /filter-options: canonical values per text
// segment from the live vocabulary snapshot.
func (s *Server) FilterOptions(w http.ResponseWriter, r *http.Request) {
	snap := s.vocabs.Current()

	options := make(map[string][]string, len(segment.TextSegments()))
	for _, seg := range segment.TextSegments() {
		values := snap.Values(seg)
		if values == nil {
			values = []string{}
		}
		options[string(seg)] = values
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version(),
		"options": options,
	})
}

// ListUnknownAttributes handles GET /admin/unknown-attributes.
func (s *Server) ListUnknownAttributes(w http.ResponseWriter, r *http.Request) {
	seg := segment.Segment(r.URL.Query().Get("segment"))
	status := domain.UnknownStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := s.curation.List(r.Context(), seg, status, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	dtos := make([]UnknownAttributeDTO, len(items))
	for i, ua := range items {
		dtos[i] = unknownToDTO(ua)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": dtos})
}

// ApproveUnknownAttribute handles POST /admin/unknown-attributes/approve.
func (s *Server) ApproveUnknownAttribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   int64  `json:"id"`
		Name string `json:"name,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "id is required")
		return
	}

	ua, err := s.curation.Approve(r.Context(), req.ID, req.Name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unknownToDTO(ua))
}

// MapUnknownAttribute handles POST /admin/unknown-attributes/map.
func (s *Server) MapUnknownAttribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        int64  `json:"id"`
		Canonical string `json:"canonical"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == 0 || req.Canonical == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "id and canonical are required")
		return
	}

	ua, err := s.curation.MapToExisting(r.Context(), req.ID, req.Canonical)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unknownToDTO(ua))
}

// SearchAnalytics handles GET /admin/search-analytics.
func (s *Server) SearchAnalytics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	report, err := s.analytics.Report(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	usage := make([]map[string]any, len(report.SegmentUsage))
	for i, u := range report.SegmentUsage {
		usage[i] = map[string]any{"segment": u.Segment, "count": u.Count}
	}
	recent := make([]map[string]any, len(report.Recent))
	for i, e := range report.Recent {
		recent[i] = map[string]any{
			"id":           e.ID,
			"query":        e.Query,
			"filters":      json.RawMessage(e.FiltersJSON),
			"result_count": e.ResultCount,
			"searched_at":  e.SearchedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_hours":  int(report.Window.Hours()),
		"segment_usage": usage,
		"recent":        recent,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Validation errors keep their full text so the client can fix the document.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidFilter) || errors.Is(err, domain.ErrUnknownSegment) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
