package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/jsonutil"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// QualityHandler handles quality inspection entry HTTP requests.
type QualityHandler struct {
	qualityService services.QualityService
	auditor        *audit.SecurityAuditor
	logger         *zap.Logger
}

// NewQualityHandler creates a new quality entry handler.
func NewQualityHandler(qualityService services.QualityService, auditor *audit.SecurityAuditor, logger *zap.Logger) *QualityHandler {
	return &QualityHandler{
		qualityService: qualityService,
		auditor:        auditor,
		logger:         logger,
	}
}

// RegisterRoutes registers the quality entry routes on the given mux.
func (h *QualityHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/quality-entries"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Delete)))
}

// Numeric fields use flexible types: tablet and gateway clients post counts
// as strings as often as numbers.
type qualityEntryRequest struct {
	ClientID             uuid.UUID            `json:"client_id"`
	EntryDate            string               `json:"entry_date"`
	ProductCode          string               `json:"product_code"`
	StepSequence         jsonutil.FlexibleInt `json:"step_sequence"`
	StepName             string               `json:"step_name"`
	UnitsInspected       jsonutil.FlexibleInt `json:"units_inspected"`
	UnitsDefective       jsonutil.FlexibleInt `json:"units_defective"`
	DefectCount          jsonutil.FlexibleInt `json:"defect_count"`
	OpportunitiesPerUnit jsonutil.FlexibleInt `json:"opportunities_per_unit"`
}

// decodeQualityEntry reads and converts the request body. Returns false
// after writing an error response when the body is unusable.
func (h *QualityHandler) decodeQualityEntry(w http.ResponseWriter, r *http.Request) (*models.QualityEntry, bool) {
	var req qualityEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return nil, false
	}

	entryDate, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_entry_date", "entry_date must be a YYYY-MM-DD date")
		return nil, false
	}

	if !screenFreeText(w, r, req.ClientID, h.auditor, map[string]string{
		"product_code": req.ProductCode,
		"step_name":    req.StepName,
	}) {
		return nil, false
	}

	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, false
	}

	return &models.QualityEntry{
		ClientID:             req.ClientID,
		EntryDate:            entryDate,
		ProductCode:          req.ProductCode,
		StepSequence:         int(req.StepSequence),
		StepName:             req.StepName,
		UnitsInspected:       int(req.UnitsInspected),
		UnitsDefective:       int(req.UnitsDefective),
		DefectCount:          int(req.DefectCount),
		OpportunitiesPerUnit: int(req.OpportunitiesPerUnit),
		CreatedBy:            userID,
	}, true
}

// Create handles POST /api/v1/quality-entries
func (h *QualityHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeQualityEntry(w, r)
	if !ok {
		return
	}

	if err := h.qualityService.Create(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/quality-entries
func (h *QualityHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseEntryFilters(r)
	if !screenFreeText(w, r, uuid.Nil, h.auditor, map[string]string{
		"product_code": filters.ProductCode,
	}) {
		return
	}

	entries, total, err := h.qualityService.List(r.Context(), filters)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if entries == nil {
		entries = make([]*models.QualityEntry, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginatedResponse{
			Items:  entries,
			Total:  total,
			Limit:  filters.Limit,
			Offset: filters.Offset,
		},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/quality-entries/{id}
func (h *QualityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.qualityService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/quality-entries/{id}
func (h *QualityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, ok := h.decodeQualityEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id

	if err := h.qualityService.Update(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/v1/quality-entries/{id}
func (h *QualityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.qualityService.Delete(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Quality entry deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
