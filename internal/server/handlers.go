package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/knowledge"
	"github.com/sponteware/triaged/internal/store"
	"github.com/sponteware/triaged/internal/triage"
	"github.com/sponteware/triaged/internal/upstream"
)

// AnalyzeRequest is the request body for POST /api/triage/analyze.
type AnalyzeRequest struct {
	Text         string `json:"text"`
	Module       string `json:"module"`
	TicketNumber string `json:"ticket_number"`
	User         string `json:"user"`
}

// AnalyzeResponse is the response body for triage endpoints.
type AnalyzeResponse struct {
	Success        bool   `json:"success"`
	TriageID       string `json:"triage_id,omitempty"`
	*triage.Result        // patterns, ai_analysis, solutions, summary, used_mock
	ProcessingMS   int64  `json:"processing_ms"`

	// Integration is set when the triage originated from an upstream
	// ticket lookup.
	Integration *Integration `json:"integration,omitempty"`
}

// Integration links a triage back to the upstream analysis it came from.
type Integration struct {
	TicketNumber string    `json:"ticket_number"`
	AnalysisID   string    `json:"analysis_id,omitempty"`
	SourceSystem string    `json:"source_system"`
	User         string    `json:"user,omitempty"`
	Client       string    `json:"client,omitempty"`
	Title        string    `json:"title,omitempty"`
	AnalyzedAt   time.Time `json:"analyzed_at,omitempty"`
}

// handleAnalyze runs a triage over raw ticket text.
func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	start := time.Now()
	result, err := s.svc.Analyze(c.Request().Context(), req.Text, req.Module)
	if err != nil {
		s.logger.Error("triage failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "triage failed")
	}
	elapsed := time.Since(start).Milliseconds()

	id := s.persist(c, &store.TriageRecord{
		TicketNumber: req.TicketNumber,
		Text:         req.Text,
		Module:       req.Module,
		User:         req.User,
		Result:       result,
		ProcessingMS: elapsed,
	})

	return c.JSON(http.StatusOK, AnalyzeResponse{
		Success:      true,
		TriageID:     id,
		Result:       result,
		ProcessingMS: elapsed,
	})
}

// handleTriageTicket resolves a ticket in the upstream system and runs a
// triage over the ticket text it generated.
func (s *Server) handleTriageTicket(c echo.Context) error {
	number := c.Param("number")

	analysis, err := s.upstream.FindByTicket(c.Request().Context(), number)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound,
				"no analysis found for ticket "+number)
		}
		s.logger.Error("upstream lookup failed", zap.String("ticket", number), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "upstream lookup failed")
	}

	if analysis.GeneratedTicket == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			"analysis found but has no generated ticket text")
	}

	start := time.Now()
	result, err := s.svc.Analyze(c.Request().Context(), analysis.GeneratedTicket, analysis.Module)
	if err != nil {
		s.logger.Error("triage failed", zap.String("ticket", number), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "triage failed")
	}
	elapsed := time.Since(start).Milliseconds()

	id := s.persist(c, &store.TriageRecord{
		TicketNumber:     number,
		SourceAnalysisID: analysis.ID,
		Text:             analysis.GeneratedTicket,
		Module:           analysis.Module,
		User:             analysis.User,
		Result:           result,
		ProcessingMS:     elapsed,
	})

	return c.JSON(http.StatusOK, AnalyzeResponse{
		Success:      true,
		TriageID:     id,
		Result:       result,
		ProcessingMS: elapsed,
		Integration: &Integration{
			TicketNumber: number,
			AnalysisID:   analysis.ID,
			SourceSystem: "primary",
			User:         analysis.User,
			Client:       analysis.Client,
			Title:        analysis.Title,
			AnalyzedAt:   analysis.AnalyzedAt,
		},
	})
}

// handleLookupTicket returns the upstream analysis for a ticket without
// triaging it.
func (s *Server) handleLookupTicket(c echo.Context) error {
	number := c.Param("number")

	analysis, err := s.upstream.FindByTicket(c.Request().Context(), number)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound,
				"no analysis found for ticket "+number)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "upstream lookup failed")
	}

	return c.JSON(http.StatusOK, analysis)
}

// FeedbackRequest is the request body for POST /api/triage/feedback.
type FeedbackRequest struct {
	TriageID     string `json:"triage_id"`
	Helpful      bool   `json:"helpful"`
	Score        *int   `json:"score,omitempty"`
	Comment      string `json:"comment,omitempty"`
	SolutionUsed string `json:"solution_used,omitempty"`
}

// FeedbackResponse is the response body for POST /api/triage/feedback.
type FeedbackResponse struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedback_id"`
}

// handleFeedback records support-staff feedback. Helpful feedback also
// marks the triage as used.
func (s *Server) handleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TriageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "triage_id field is required")
	}

	if req.Score != nil && (*req.Score < 1 || *req.Score > 5) {
		return echo.NewHTTPError(http.StatusBadRequest, "score must be between 1 and 5")
	}

	ctx := c.Request().Context()
	id, err := s.store.SaveFeedback(ctx, &store.FeedbackRecord{
		TriageID:     req.TriageID,
		Helpful:      req.Helpful,
		Rating:       req.Score,
		Comment:      req.Comment,
		SolutionUsed: req.SolutionUsed,
	})
	if err != nil {
		s.logger.Error("failed to save feedback", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save feedback")
	}

	if req.Helpful {
		if err := s.store.MarkUsed(ctx, req.TriageID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to mark triage as used",
				zap.String("triage_id", req.TriageID), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, FeedbackResponse{Success: true, FeedbackID: id})
}

// HistoryResponse is the response body for GET /api/triage/history.
type HistoryResponse struct {
	Triages []store.TriageSummary `json:"triages"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// handleHistory lists past triages, paginated and optionally filtered by
// module.
func (s *Server) handleHistory(c echo.Context) error {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(c, "per_page", 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	module := c.QueryParam("module")

	all, err := s.store.RecentTriages(c.Request().Context(), 0)
	if err != nil {
		s.logger.Error("failed to list triages", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list triages")
	}

	if module != "" {
		filtered := make([]store.TriageSummary, 0, len(all))
		for _, t := range all {
			if t.Module == module {
				filtered = append(filtered, t)
			}
		}
		all = filtered
	}

	total := len(all)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, HistoryResponse{
		Triages: all[start:end],
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

// handleStats aggregates triage activity over a trailing day window.
func (s *Server) handleStats(c echo.Context) error {
	days := queryInt(c, "days", 7)
	if days < 1 || days > 365 {
		days = 7
	}

	stats, err := s.store.Stats(c.Request().Context(), days)
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// PatternInfo is the listing view of a knowledge rule.
type PatternInfo struct {
	ID       string             `json:"id"`
	Group    knowledge.Group    `json:"group"`
	Keywords []string           `json:"keywords"`
	Category string             `json:"category"`
	Priority knowledge.Priority `json:"priority"`
}

// PatternsResponse is the response body for GET /api/triage/patterns.
type PatternsResponse struct {
	Patterns []PatternInfo `json:"patterns"`
	Total    int           `json:"total"`
}

// handlePatterns lists the detectable patterns without their solutions.
func (s *Server) handlePatterns(c echo.Context) error {
	rules := s.svc.Base().All()

	patterns := make([]PatternInfo, 0, len(rules))
	for _, r := range rules {
		patterns = append(patterns, PatternInfo{
			ID:       r.ID,
			Group:    r.Group,
			Keywords: r.Keywords,
			Category: r.Category,
			Priority: r.Priority,
		})
	}

	return c.JSON(http.StatusOK, PatternsResponse{Patterns: patterns, Total: len(patterns)})
}

// KnowledgeBaseResponse is the response body for GET /api/triage/knowledge-base.
type KnowledgeBaseResponse struct {
	Groups     map[knowledge.Group][]knowledge.Rule `json:"groups"`
	TotalRules int                                  `json:"total_rules"`
}

// handleKnowledgeBase dumps the loaded knowledge base, solutions included.
func (s *Server) handleKnowledgeBase(c echo.Context) error {
	base := s.svc.Base()

	groups := make(map[knowledge.Group][]knowledge.Rule, len(knowledge.GroupOrder))
	for _, g := range knowledge.GroupOrder {
		if rules := base.Rules(g); len(rules) > 0 {
			groups[g] = rules
		}
	}

	return c.JSON(http.StatusOK, KnowledgeBaseResponse{
		Groups:     groups,
		TotalRules: base.Len(),
	})
}

// ConfigResponse is the non-secret runtime configuration summary.
type ConfigResponse struct {
	AnalyzerProvider   string `json:"analyzer_provider"`
	AnalyzerModel      string `json:"analyzer_model,omitempty"`
	AnalyzerConfigured bool   `json:"analyzer_configured"`
	MockMode           bool   `json:"mock_mode"`
	KnowledgeRules     int    `json:"knowledge_rules"`
	StoreBackend       string `json:"store_backend"`
	UpstreamConfigured bool   `json:"upstream_configured"`
}

// handleConfig reports how the service is wired, with secrets omitted.
func (s *Server) handleConfig(c echo.Context) error {
	backend := "memory"
	if _, ok := s.store.(*store.Firestore); ok {
		backend = "firestore"
	}

	return c.JSON(http.StatusOK, ConfigResponse{
		AnalyzerProvider:   s.cfg.Analyzer.Provider,
		AnalyzerModel:      s.cfg.Analyzer.Model,
		AnalyzerConfigured: !s.svc.MockMode(),
		MockMode:           s.svc.MockMode(),
		KnowledgeRules:     s.svc.Base().Len(),
		StoreBackend:       backend,
		UpstreamConfigured: s.cfg.Upstream.BaseURL != "" || s.upstream.FirestoreConfigured(),
	})
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	MockMode       bool   `json:"mock_mode"`
	KnowledgeRules int    `json:"knowledge_rules"`
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		MockMode:       s.svc.MockMode(),
		KnowledgeRules: s.svc.Base().Len(),
	})
}

// UpstreamStatusResponse is the response body for GET /api/triage/upstream/status.
type UpstreamStatusResponse struct {
	Reachable bool `json:"reachable"`
	Firestore bool `json:"firestore"`
}

// handleUpstreamStatus probes the main system.
func (s *Server) handleUpstreamStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, UpstreamStatusResponse{
		Reachable: s.upstream.Ping(c.Request().Context()),
		Firestore: s.upstream.FirestoreConfigured(),
	})
}

// UpstreamRecentResponse is the response body for GET /api/triage/upstream/recent.
type UpstreamRecentResponse struct {
	Analyses []upstream.Analysis `json:"analyses"`
	Total    int                 `json:"total"`
}

// handleUpstreamRecent lists the main system's latest analyses.
func (s *Server) handleUpstreamRecent(c echo.Context) error {
	limit := queryInt(c, "limit", 10)

	analyses, err := s.upstream.RecentAnalyses(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("failed to fetch recent analyses", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "upstream lookup failed")
	}

	return c.JSON(http.StatusOK, UpstreamRecentResponse{Analyses: analyses, Total: len(analyses)})
}

// persist saves a triage record, logging instead of failing the request
// when the store misbehaves. History is best effort; the triage result
// still reaches the caller.
func (s *Server) persist(c echo.Context, rec *store.TriageRecord) string {
	id, err := s.store.SaveTriage(c.Request().Context(), rec)
	if err != nil {
		s.logger.Error("failed to persist triage",
			zap.String("ticket", rec.TicketNumber), zap.Error(err))
		return ""
	}
	return id
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
