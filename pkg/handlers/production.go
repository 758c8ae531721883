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

// ProductionHandler handles production entry HTTP requests.
type ProductionHandler struct {
	productionService services.ProductionService
	auditor           *audit.SecurityAuditor
	logger            *zap.Logger
}

// NewProductionHandler creates a new production entry handler.
func NewProductionHandler(productionService services.ProductionService, auditor *audit.SecurityAuditor, logger *zap.Logger) *ProductionHandler {
	return &ProductionHandler{
		productionService: productionService,
		auditor:           auditor,
		logger:            logger,
	}
}

// RegisterRoutes registers the production entry routes on the given mux.
func (h *ProductionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/production-entries"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Delete)))
}

// Numeric fields use flexible types: tablet and gateway clients post counts
// as strings as often as numbers.
type productionEntryRequest struct {
	ClientID          uuid.UUID               `json:"client_id"`
	ShiftID           uuid.UUID               `json:"shift_id"`
	WorkOrderID       *uuid.UUID              `json:"work_order_id"`
	ProductCode       string                  `json:"product_code"`
	EntryDate         string                  `json:"entry_date"`
	UnitsProduced     jsonutil.FlexibleInt    `json:"units_produced"`
	EmployeesAssigned jsonutil.FlexibleInt    `json:"employees_assigned"`
	RunTimeHours      jsonutil.FlexibleFloat  `json:"run_time_hours"`
	IdealCycleTime    *jsonutil.FlexibleFloat `json:"ideal_cycle_time"`
}

// decodeProductionEntry reads and converts the request body. Returns false
// after writing an error response when the body is unusable.
func (h *ProductionHandler) decodeProductionEntry(w http.ResponseWriter, r *http.Request) (*models.ProductionEntry, bool) {
	var req productionEntryRequest
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
	}) {
		return nil, false
	}

	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, false
	}

	return &models.ProductionEntry{
		ClientID:          req.ClientID,
		ShiftID:           req.ShiftID,
		WorkOrderID:       req.WorkOrderID,
		ProductCode:       req.ProductCode,
		EntryDate:         entryDate,
		UnitsProduced:     int(req.UnitsProduced),
		EmployeesAssigned: int(req.EmployeesAssigned),
		RunTimeHours:      float64(req.RunTimeHours),
		IdealCycleTime:    req.IdealCycleTime.Float64Ptr(),
		CreatedBy:         userID,
	}, true
}

// Create handles POST /api/v1/production-entries
func (h *ProductionHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeProductionEntry(w, r)
	if !ok {
		return
	}

	if err := h.productionService.Create(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/production-entries
func (h *ProductionHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseEntryFilters(r)
	if !screenFreeText(w, r, uuid.Nil, h.auditor, map[string]string{
		"product_code": filters.ProductCode,
	}) {
		return
	}

	entries, total, err := h.productionService.List(r.Context(), filters)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if entries == nil {
		entries = make([]*models.ProductionEntry, 0)
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

// Get handles GET /api/v1/production-entries/{id}
func (h *ProductionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.productionService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/production-entries/{id}
func (h *ProductionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, ok := h.decodeProductionEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id

	if err := h.productionService.Update(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/v1/production-entries/{id}
func (h *ProductionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.productionService.Delete(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Production entry deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
