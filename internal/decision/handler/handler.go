package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"underwriter/internal/decision"
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
	dErrors "underwriter/pkg/domain-errors"
	"underwriter/pkg/platform/httputil"
	"underwriter/pkg/requestcontext"
)

// Service defines the interface for underwriting operations.
type Service interface {
	EvaluateOne(ctx context.Context, app *models.Application, ruleSetName string, useAI bool) (models.FinalDecision, error)
	EvaluateBatch(ctx context.Context, apps []*models.Application, ruleSetName string, useAI bool, maxConcurrency int) ([]models.FinalDecision, error)
	CompareRuleSets(ctx context.Context, app *models.Application, ruleSetNames []string, useAI bool) (map[string]models.FinalDecision, error)
	ListRuleSets() []ruleset.Info
	RuleSetInfo(name string) (ruleset.Info, error)
	DefaultRuleSet() string
	ReloadRuleSets(ctx context.Context) (decision.ReloadResult, error)
	GetDecision(ctx context.Context, applicationID string) (*models.DecisionRecord, error)
	ListDecisions(ctx context.Context, limit int) ([]*models.DecisionRecord, error)
}

// Handler wires underwriting endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an underwriting handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts underwriting endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/underwriting/evaluate", h.HandleEvaluate)
	r.Post("/v1/underwriting/batch", h.HandleBatch)
	r.Post("/v1/underwriting/compare", h.HandleCompare)

	r.Get("/v1/rulesets", h.HandleListRuleSets)
	r.Get("/v1/rulesets/{name}", h.HandleGetRuleSet)
	r.Post("/v1/rulesets/reload", h.HandleReloadRuleSets)

	r.Get("/v1/decisions", h.HandleListDecisions)
	r.Get("/v1/decisions/{application_id}", h.HandleGetDecision)
}

// HandleEvaluate handles POST /v1/underwriting/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	fd, err := h.service.EvaluateOne(ctx, req.Application, req.RuleSet, useAI(req.UseAI))
	if err != nil {
		h.logger.ErrorContext(ctx, "evaluation failed",
			"request_id", requestID,
			"application_id", req.Application.ID,
			"rule_set", req.RuleSet,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application evaluated",
		"request_id", requestID,
		"application_id", fd.ApplicationID,
		"decision", fd.Decision,
		"basis", fd.Basis,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fd)
}

// HandleBatch handles POST /v1/underwriting/batch requests.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decisions, err := h.service.EvaluateBatch(ctx, req.Applications, req.RuleSet, useAI(req.UseAI), req.MaxConcurrency)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch evaluation failed",
			"request_id", requestID,
			"size", len(req.Applications),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch evaluated",
		"request_id", requestID,
		"size", len(decisions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, &BatchResponse{
		Decisions:  decisions,
		Statistics: decision.Statistics(decisions),
	})
}

// HandleCompare handles POST /v1/underwriting/compare requests.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CompareRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.CompareRuleSets(ctx, req.Application, req.RuleSets, useAI(req.UseAI))
	if err != nil {
		h.logger.ErrorContext(ctx, "rule set comparison failed",
			"request_id", requestID,
			"application_id", req.Application.ID,
			"rule_sets", req.RuleSets,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "rule sets compared",
		"request_id", requestID,
		"application_id", req.Application.ID,
		"rule_sets", req.RuleSets,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromComparison(req.Application.ID, results))
}

// HandleListRuleSets handles GET /v1/rulesets requests.
func (h *Handler) HandleListRuleSets(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, &RuleSetsResponse{
		Default:  h.service.DefaultRuleSet(),
		RuleSets: h.service.ListRuleSets(),
	})
}

// HandleGetRuleSet handles GET /v1/rulesets/{name} requests.
func (h *Handler) HandleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	name, err := normalizeRuleSet(chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	info, err := h.service.RuleSetInfo(name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// HandleReloadRuleSets handles POST /v1/rulesets/reload requests.
func (h *Handler) HandleReloadRuleSets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	result, err := h.service.ReloadRuleSets(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "rule set reload failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "rule sets reloaded",
		"request_id", requestID,
		"generation", result.Generation,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGetDecision handles GET /v1/decisions/{application_id} requests.
func (h *Handler) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := h.service.GetDecision(ctx, chi.URLParam(r, "application_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRecord(rec))
}

// HandleListDecisions handles GET /v1/decisions requests.
func (h *Handler) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	recs, err := h.service.ListDecisions(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRecords(recs))
}
