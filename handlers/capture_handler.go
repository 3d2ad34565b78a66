package handlers

import (
	"context"
	"net/http"

	"github.com/upb/case-events/middleware"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/services"
	"github.com/upb/case-events/services/capture"
	"github.com/upb/case-events/services/taxonomy"
	"github.com/upb/case-events/utils"
	"go.uber.org/zap"
)

// CaptureRuleService reads and writes capture overrides
type CaptureRuleService interface {
	LoadCaptureState(ctx context.Context) (*models.CaptureState, error)
	UpdateCaptureRules(ctx context.Context, updates []capture.RuleUpdate, actorID string) (*models.CaptureState, error)
	Diagnostics(ctx context.Context) (capture.Diagnostics, error)
}

// CapturePolicyCache is the cached policy the emitter consults
type CapturePolicyCache interface {
	Invalidate()
	Stats() capture.CacheStats
}

// UpdateCaptureRulesRequest is the body of PUT /api/v1/capture/rules
type UpdateCaptureRulesRequest struct {
	Rules []capture.RuleUpdate `json:"rules" validate:"required,min=1,max=200,dive"`
}

// CaptureDiagnosticsResponse combines override diagnostics with cache statistics
type CaptureDiagnosticsResponse struct {
	Rules capture.Diagnostics `json:"rules"`
	Cache capture.CacheStats  `json:"cache"`
}

// CaptureHandler serves the capture administration endpoints
type CaptureHandler struct {
	rules  CaptureRuleService
	cache  CapturePolicyCache
	logger *zap.Logger
}

// NewCaptureHandler creates a new CaptureHandler
func NewCaptureHandler(rules CaptureRuleService, cache CapturePolicyCache, logger *zap.Logger) *CaptureHandler {
	return &CaptureHandler{
		rules:  rules,
		cache:  cache,
		logger: logger,
	}
}

// HandleCatalog handles GET /api/v1/capture/catalog
func (h *CaptureHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, taxonomy.ListCategories()); err != nil {
		h.logger.Error("failed to write catalog response", zap.Error(err))
	}
}

// HandleState handles GET /api/v1/capture/state
func (h *CaptureHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.rules.LoadCaptureState(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to load capture state", err), h.logger)
		return
	}
	if err := utils.WriteOK(w, state); err != nil {
		h.logger.Error("failed to write capture state response", zap.Error(err))
	}
}

// HandleUpdateRules handles PUT /api/v1/capture/rules
func (h *CaptureHandler) HandleUpdateRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateCaptureRulesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	actorID := middleware.RequesterID(ctx)
	state, err := h.rules.UpdateCaptureRules(ctx, req.Rules, actorID)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to update capture rules", err), h.logger)
		return
	}

	h.logger.Info("capture rules updated via api",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("actor_id", actorID),
		zap.Int("requested", len(req.Rules)))

	if err := utils.WriteOK(w, state); err != nil {
		h.logger.Error("failed to write capture state response", zap.Error(err))
	}
}

// HandleInvalidateCache handles POST /api/v1/capture/cache/invalidate
func (h *CaptureHandler) HandleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()
	h.logger.Info("capture cache invalidated via api",
		zap.String("actor_id", middleware.RequesterID(r.Context())))
	utils.WriteNoContent(w)
}

// HandleDiagnostics handles GET /api/v1/capture/diagnostics
func (h *CaptureHandler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diag, err := h.rules.Diagnostics(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to load capture diagnostics", err), h.logger)
		return
	}

	if err := utils.WriteOK(w, CaptureDiagnosticsResponse{
		Rules: diag,
		Cache: h.cache.Stats(),
	}); err != nil {
		h.logger.Error("failed to write diagnostics response", zap.Error(err))
	}
}
