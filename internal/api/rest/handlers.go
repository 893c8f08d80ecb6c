package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
	domainrec "github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
	"github.com/accessforge/erp-access-advisor/internal/domain/security"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/cache"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/snapshot"
	"github.com/accessforge/erp-access-advisor/internal/service/confidence"
	"github.com/accessforge/erp-access-advisor/internal/service/observation"
	"github.com/accessforge/erp-access-advisor/internal/service/recommendation"
)

// Handler serves the advisor's REST surface
type Handler struct {
	recommendations recommendation.Service
	ledger          *confidence.Ledger
	controller      *observation.Controller
	snapshots       *snapshot.Store
	rebuilder       *snapshot.Rebuilder
	patternCache    *cache.PatternCache
	algorithmID     string
	validate        *validator.Validate
	logger          *zap.Logger
}

// NewHandler creates the REST handler. The pattern cache is optional; without
// it every pattern read goes to the ledger.
func NewHandler(
	recommendations recommendation.Service,
	ledger *confidence.Ledger,
	controller *observation.Controller,
	snapshots *snapshot.Store,
	rebuilder *snapshot.Rebuilder,
	patternCache *cache.PatternCache,
	algorithmID string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		recommendations: recommendations,
		ledger:          ledger,
		controller:      controller,
		snapshots:       snapshots,
		rebuilder:       rebuilder,
		patternCache:    patternCache,
		algorithmID:     algorithmID,
		validate:        validator.New(),
		logger:          logger,
	}
}

func (h *Handler) decodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domainErrors.NewValidationError("INVALID_REQUEST", "malformed request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return domainErrors.NewValidationError("INVALID_REQUEST", err.Error())
	}
	return nil
}

// HandleRecommend serves POST /api/v1/recommendations
func (h *Handler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]security.MenuItemID, len(req.RequiredMenuItems))
	for i, id := range req.RequiredMenuItems {
		items[i] = security.MenuItemID(id)
	}

	result, err := h.recommendations.Recommend(r.Context(), recommendation.RecommendRequest{
		RequiredMenuItems: items,
		TopK:              req.TopK,
		PatternKey:        req.PatternKey,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleConflictCheck serves POST /api/v1/conflicts/check
func (h *Handler) HandleConflictCheck(w http.ResponseWriter, r *http.Request) {
	var req ConflictCheckRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	roles := make([]security.RoleID, len(req.Roles))
	for i, id := range req.Roles {
		roles[i] = security.RoleID(id)
	}

	conflicts, err := h.recommendations.CheckRoles(r.Context(), roles)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ConflictCheckResponse{Conflicts: conflicts})
}

// HandleGetPatternState serves GET /api/v1/patterns/{algorithmID}/{patternKey}
func (h *Handler) HandleGetPatternState(w http.ResponseWriter, r *http.Request) {
	algorithmID := r.PathValue("algorithmID")
	patternKey := r.PathValue("patternKey")
	if algorithmID == "" || patternKey == "" {
		badRequest(w, h.logger, "algorithm id and pattern key are required")
		return
	}

	if h.patternCache != nil {
		if status, ok := h.patternCache.Get(r.Context(), algorithmID, patternKey); ok {
			writeJSON(w, http.StatusOK, h.patternResponse(algorithmID, patternKey, status.State, status.Confidence))
			return
		}
	}

	state, conf, _ := h.controller.PatternState(r.Context(), algorithmID, patternKey)
	if h.patternCache != nil {
		h.patternCache.Set(r.Context(), algorithmID, patternKey, cache.PatternStatus{State: state, Confidence: conf})
	}

	writeJSON(w, http.StatusOK, h.patternResponse(algorithmID, patternKey, state, conf))
}

func (h *Handler) patternResponse(algorithmID, patternKey string, state domainrec.State, conf float64) PatternStateResponse {
	return PatternStateResponse{
		AlgorithmID: algorithmID,
		PatternKey:  patternKey,
		State:       state.String(),
		Confidence:  conf,
		Actionable:  state == domainrec.StateActive,
	}
}

// HandleRollback serves POST /api/v1/rollbacks, the rollback report channel
func (h *Handler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	category, err := domainrec.ParseRollbackCategory(req.Category)
	if err != nil {
		badRequest(w, h.logger, err.Error())
		return
	}

	pattern, err := h.ledger.RecordRollback(r.Context(), req.AlgorithmID, req.PatternKey, category)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.invalidatePattern(r.Context(), req.AlgorithmID, req.PatternKey)

	writeJSON(w, http.StatusOK, h.patternResponse(req.AlgorithmID, req.PatternKey, pattern.State, pattern.Confidence))
}

// HandleApprove serves POST /api/v1/patterns/{algorithmID}/{patternKey}/approve
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	algorithmID := r.PathValue("algorithmID")
	patternKey := r.PathValue("patternKey")

	var req ApprovalRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	pattern, err := h.controller.Approve(r.Context(), algorithmID, patternKey, req.Approved)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.invalidatePattern(r.Context(), algorithmID, patternKey)

	writeJSON(w, http.StatusOK, h.patternResponse(algorithmID, patternKey, pattern.State, pattern.Confidence))
}

// HandleObservationReport serves POST /api/v1/patterns/{algorithmID}/{patternKey}/observations
func (h *Handler) HandleObservationReport(w http.ResponseWriter, r *http.Request) {
	algorithmID := r.PathValue("algorithmID")
	patternKey := r.PathValue("patternKey")

	var req ObservationReportRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	_, err := h.controller.ReportObservation(r.Context(), algorithmID, patternKey, domainrec.ObservationStats{
		EvaluatedCoverage:      req.EvaluatedCoverage,
		Accuracy:               req.Accuracy,
		CriticalFalsePositives: req.CriticalFalsePositives,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	pattern, err := h.controller.Evaluate(r.Context(), algorithmID, patternKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.invalidatePattern(r.Context(), algorithmID, patternKey)

	writeJSON(w, http.StatusOK, h.patternResponse(algorithmID, patternKey, pattern.State, pattern.Confidence))
}

// HandleDisable serves POST /api/v1/patterns/{algorithmID}/{patternKey}/disable
func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.fireLifecycle(w, r, func(ctx context.Context, alg, key string) (domainrec.Pattern, error) {
		return h.controller.Disable(ctx, alg, key)
	})
}

// HandleReenable serves POST /api/v1/patterns/{algorithmID}/{patternKey}/reenable
func (h *Handler) HandleReenable(w http.ResponseWriter, r *http.Request) {
	h.fireLifecycle(w, r, func(ctx context.Context, alg, key string) (domainrec.Pattern, error) {
		return h.controller.Reenable(ctx, alg, key)
	})
}

func (h *Handler) fireLifecycle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, alg, key string) (domainrec.Pattern, error)) {
	algorithmID := r.PathValue("algorithmID")
	patternKey := r.PathValue("patternKey")
	if algorithmID == "" || patternKey == "" {
		badRequest(w, h.logger, "algorithm id and pattern key are required")
		return
	}

	pattern, err := fn(r.Context(), algorithmID, patternKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.invalidatePattern(r.Context(), algorithmID, patternKey)

	writeJSON(w, http.StatusOK, h.patternResponse(algorithmID, patternKey, pattern.State, pattern.Confidence))
}

// HandleRebuild serves POST /api/v1/admin/rebuild
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		writeError(w, h.logger, domainErrors.NewInternalError("no rebuilder configured"))
		return
	}

	if err := h.rebuilder.Rebuild(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.HandleHealth(w, r)
}

// HandleHealth serves GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if index, matrix, ok := h.snapshots.Current(); ok {
		resp.SnapshotReady = true
		resp.IndexVersion = index.Version().String()
		resp.MatrixVersion = matrix.Version().String()
		resp.RolesIndexed = index.RoleCount()
		resp.ConflictRules = matrix.RuleCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) invalidatePattern(ctx context.Context, algorithmID, patternKey string) {
	if h.patternCache != nil {
		h.patternCache.Invalidate(ctx, algorithmID, patternKey)
	}
}
