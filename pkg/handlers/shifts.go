package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// ShiftHandler handles shift definition HTTP requests.
type ShiftHandler struct {
	shiftService services.ShiftService
	auditor      *audit.SecurityAuditor
	logger       *zap.Logger
}

// NewShiftHandler creates a new shift handler.
func NewShiftHandler(shiftService services.ShiftService, auditor *audit.SecurityAuditor, logger *zap.Logger) *ShiftHandler {
	return &ShiftHandler{
		shiftService: shiftService,
		auditor:      auditor,
		logger:       logger,
	}
}

// RegisterRoutes registers the shift routes on the given mux.
func (h *ShiftHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/shifts"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.ListByClient)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Deactivate)))
}

type shiftRequest struct {
	ClientID  uuid.UUID `json:"client_id"`
	Name      string    `json:"name"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// decodeShift reads and converts the request body. Returns false after
// writing an error response when the body is unusable.
func (h *ShiftHandler) decodeShift(w http.ResponseWriter, r *http.Request) (*models.Shift, bool) {
	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return nil, false
	}

	if !screenFreeText(w, r, req.ClientID, h.auditor, map[string]string{
		"name": req.Name,
	}) {
		return nil, false
	}

	return &models.Shift{
		ClientID:  req.ClientID,
		Name:      req.Name,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, true
}

// Create handles POST /api/v1/shifts
func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.decodeShift(w, r)
	if !ok {
		return
	}

	if err := h.shiftService.Create(r.Context(), shift); err != nil {
		RespondServiceError(w, r, err, shift.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: shift}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByClient handles GET /api/v1/shifts?client_id=
func (h *ShiftHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientIDQuery(w, r, h.logger)
	if !ok {
		return
	}

	shifts, err := h.shiftService.ListByClient(r.Context(), clientID)
	if err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	if shifts == nil {
		shifts = make([]*models.Shift, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shifts}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/shifts/{id}
func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseShiftID(w, r, h.logger)
	if !ok {
		return
	}

	shift, err := h.shiftService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shift}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/shifts/{id}
func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseShiftID(w, r, h.logger)
	if !ok {
		return
	}

	shift, ok := h.decodeShift(w, r)
	if !ok {
		return
	}
	shift.ID = id

	if err := h.shiftService.Update(r.Context(), shift); err != nil {
		RespondServiceError(w, r, err, shift.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shift}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Deactivate handles DELETE /api/v1/shifts/{id}
//
// Shifts are referenced by historical entries, so they are deactivated
// rather than removed.
func (h *ShiftHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseShiftID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.shiftService.Deactivate(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Shift deactivated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
