package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/apperrors"
	"github.com/crosschema/reconcile-engine/pkg/models"
	"github.com/crosschema/reconcile-engine/pkg/services"
	"github.com/crosschema/reconcile-engine/pkg/sqlgen"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// DiscoverRelationshipsRequest for POST /api/relationships/discover
type DiscoverRelationshipsRequest struct {
	SchemaNames []string `json:"schema_names"`
	UseOracle   bool     `json:"use_oracle"`
}

// DiscoverRelationshipsResponse for POST /api/relationships/discover
type DiscoverRelationshipsResponse struct {
	Relationships []*models.Relationship `json:"relationships"`
	Total         int                    `json:"total"`
}

// RenderSQLRequest for POST /api/reconciliation/sql
type RenderSQLRequest struct {
	Rule      *models.ReconciliationRule `json:"rule"`
	QueryType sqlgen.QueryType           `json:"query_type"`
}

// RenderSQLResponse for POST /api/reconciliation/sql
type RenderSQLResponse struct {
	SQL string `json:"sql"`
}

// ============================================================================
// Handler
// ============================================================================

// ReconciliationHandler handles rule generation and relationship discovery
// HTTP requests.
type ReconciliationHandler struct {
	service  services.RuleGenerationService
	renderer sqlgen.Renderer
	logger   *zap.Logger
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(
	service services.RuleGenerationService,
	renderer sqlgen.Renderer,
	logger *zap.Logger,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		service:  service,
		renderer: renderer,
		logger:   logger,
	}
}

// RegisterRoutes registers the reconciliation handler's routes on the given mux.
func (h *ReconciliationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/reconciliation/generate", h.Generate)
	mux.HandleFunc("POST /api/reconciliation/sql", h.RenderSQL)
	mux.HandleFunc("POST /api/relationships/discover", h.Discover)
}

// Generate handles POST /api/reconciliation/generate
// An empty rule set is a successful outcome and returns 200 with count 0.
func (h *ReconciliationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.service.GenerateRules(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, "generate_rules_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Discover handles POST /api/relationships/discover
func (h *ReconciliationHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRelationshipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	relationships, err := h.service.DiscoverRelationships(r.Context(), req.SchemaNames, req.UseOracle)
	if err != nil {
		h.writeServiceError(w, "discover_relationships_failed", err)
		return
	}

	response := DiscoverRelationshipsResponse{
		Relationships: relationships,
		Total:         len(relationships),
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RenderSQL handles POST /api/reconciliation/sql
func (h *ReconciliationHandler) RenderSQL(w http.ResponseWriter, r *http.Request) {
	var req RenderSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if !sqlgen.IsValidQueryType(req.QueryType) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query_type",
			"query_type must be one of: all, matched, unmatched"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sql, err := h.renderer.Render(req.Rule, req.QueryType)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "render_sql_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: RenderSQLResponse{SQL: sql}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeServiceError maps service errors onto HTTP statuses. Input problems
// come back as 400; everything else is a 500.
func (h *ReconciliationHandler) writeServiceError(w http.ResponseWriter, errorCode string, err error) {
	h.logger.Error("Service call failed", zap.String("error_code", errorCode), zap.Error(err))

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrNoSchemas),
		errors.Is(err, apperrors.ErrMalformedSchema):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	}

	if err := ErrorResponse(w, status, errorCode, err.Error()); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
