// Package chi exposes the search pipeline over a thin HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/query"
	searchuc "github.com/ivanmandinski/aisearch-sub001/internal/usecase/search"
)

// Searcher is the consumer interface for the search pipeline (ISP).
type Searcher interface {
	Search(ctx context.Context, q *query.Query) (searchuc.Response, error)
	Invalidate(prefix string) int
}

// HealthChecker reports readiness of the index store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server implements the HTTP API.
type Server struct {
	search Searcher
	health HealthChecker
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{search: search, health: health, logger: logger}
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.handleSearch)
	r.Post("/v1/cache/invalidate", s.handleInvalidate)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// --- Request/response DTOs ---

type searchRequest struct {
	Query        string         `json:"query"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	AIEnabled    *bool          `json:"ai_enabled"`
	AIWeight     *float64       `json:"ai_weight"`
	Instructions string         `json:"instructions"`
	Filters      *filterRequest `json:"filters"`
}

type filterRequest struct {
	Types           []string `json:"types"`
	PublishedAfter  string   `json:"published_after"`
	PublishedBefore string   `json:"published_before"`
	Sort            string   `json:"sort"`
}

type searchResponse struct {
	Results    []resultDTO   `json:"results"`
	Pagination paginationDTO `json:"pagination"`
	Metadata   metadataDTO   `json:"metadata"`
}

type resultDTO struct {
	ID          string   `json:"id"`
	SourceType  string   `json:"source_type"`
	Title       string   `json:"title"`
	Excerpt     string   `json:"excerpt"`
	HybridScore float64  `json:"hybrid_score"`
	PublishedAt string   `json:"published_at,omitempty"`
	AIScore     *float64 `json:"ai_score,omitempty"`
}

type paginationDTO struct {
	Offset       int  `json:"offset"`
	Limit        int  `json:"limit"`
	HasMore      bool `json:"has_more"`
	TotalResults int  `json:"total_results"`
}

type metadataDTO struct {
	RerankOutcome string `json:"rerank_outcome"`
	Rewritten     bool   `json:"query_rewritten"`
	Intent        string `json:"intent"`
	CacheHit      bool   `json:"cache_hit"`
}

type invalidateRequest struct {
	Prefix string `json:"prefix"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Handlers ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	q, err := buildQuery(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(resp))
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	dropped := s.search.Invalidate(req.Prefix)
	writeJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "index store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		// Client went away; nothing useful to write. A context error with a
		// live request context is a pipeline failure, not a disconnect.
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRetrievalUnavailable):
		// Distinct from a valid empty result: retrieval itself is down.
		writeError(w, http.StatusServiceUnavailable, "search is temporarily unavailable")
	default:
		s.logger.Error("Search request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Conversion ---

func buildQuery(req *searchRequest) (*query.Query, error) {
	f, err := buildFilter(req.Filters)
	if err != nil {
		return nil, err
	}

	aiEnabled := true
	if req.AIEnabled != nil {
		aiEnabled = *req.AIEnabled
	}

	q, err := query.New(
		req.Query,
		req.Page, req.PageSize,
		aiEnabled, req.AIWeight,
		req.Instructions,
		f,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func buildFilter(req *filterRequest) (filter.Filter, error) {
	if req == nil {
		return filter.Filter{}, nil
	}

	var after, before time.Time
	var err error
	if req.PublishedAfter != "" {
		if after, err = time.Parse(time.RFC3339, req.PublishedAfter); err != nil {
			return filter.Filter{}, errors.New("published_after must be RFC3339")
		}
	}
	if req.PublishedBefore != "" {
		if before, err = time.Parse(time.RFC3339, req.PublishedBefore); err != nil {
			return filter.Filter{}, errors.New("published_before must be RFC3339")
		}
	}

	return filter.New(req.Types, after, before, filter.Sort(req.Sort))
}

func toSearchResponse(resp searchuc.Response) searchResponse {
	results := make([]resultDTO, 0, len(resp.Results))
	for _, res := range resp.Results {
		dto := resultDTO{
			ID:          res.ID,
			SourceType:  res.SourceType,
			Title:       res.Title,
			Excerpt:     res.Excerpt,
			HybridScore: res.HybridScore,
			AIScore:     res.AIScore,
		}
		if !res.PublishedAt.IsZero() {
			dto.PublishedAt = res.PublishedAt.UTC().Format(time.RFC3339)
		}
		results = append(results, dto)
	}

	return searchResponse{
		Results: results,
		Pagination: paginationDTO{
			Offset:       resp.Pagination.Offset,
			Limit:        resp.Pagination.Limit,
			HasMore:      resp.Pagination.HasMore,
			TotalResults: resp.Pagination.TotalResults,
		},
		Metadata: metadataDTO{
			RerankOutcome: string(resp.Metadata.RerankOutcome),
			Rewritten:     resp.Metadata.Rewritten,
			Intent:        string(resp.Metadata.Intent),
			CacheHit:      resp.Metadata.CacheHit,
		},
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
