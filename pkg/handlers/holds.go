package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// HoldHandler handles work order hold HTTP requests, including the
// request/approve workflow for holding and resuming.
type HoldHandler struct {
	holdService services.HoldService
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewHoldHandler creates a new hold handler.
func NewHoldHandler(holdService services.HoldService, auditor *audit.SecurityAuditor, logger *zap.Logger) *HoldHandler {
	return &HoldHandler{
		holdService: holdService,
		auditor:     auditor,
		logger:      logger,
	}
}

// RegisterRoutes registers the hold routes on the given mux.
func (h *HoldHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/holds"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Request)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("POST "+base+"/{id}/approve", authMiddleware.RequireAuth(scopeMiddleware(h.Approve)))
	mux.HandleFunc("POST "+base+"/{id}/reject", authMiddleware.RequireAuth(scopeMiddleware(h.Reject)))
	mux.HandleFunc("POST "+base+"/{id}/request-resume", authMiddleware.RequireAuth(scopeMiddleware(h.RequestResume)))
	mux.HandleFunc("POST "+base+"/{id}/approve-resume", authMiddleware.RequireAuth(scopeMiddleware(h.ApproveResume)))
	mux.HandleFunc("POST "+base+"/{id}/reject-resume", authMiddleware.RequireAuth(scopeMiddleware(h.RejectResume)))
	mux.HandleFunc("POST "+base+"/{id}/cancel", authMiddleware.RequireAuth(scopeMiddleware(h.Cancel)))
}

type holdRequest struct {
	WorkOrderID uuid.UUID `json:"work_order_id"`
	Reason      string    `json:"reason"`
}

// Request handles POST /api/v1/holds
//
// Opens a hold on a work order. The hold starts pending approval; nothing
// is physically held until a leader or above approves it.
func (h *HoldHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if !screenFreeText(w, r, uuid.Nil, h.auditor, map[string]string{
		"reason": req.Reason,
	}) {
		return
	}

	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	hold := &models.HoldEntry{
		WorkOrderID: req.WorkOrderID,
		Reason:      req.Reason,
		RequestedBy: userID,
	}

	if err := h.holdService.Request(r.Context(), hold); err != nil {
		RespondServiceError(w, r, err, hold.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: hold}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/holds
func (h *HoldHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseHoldFilters(r)

	holds, total, err := h.holdService.List(r.Context(), filters)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if holds == nil {
		holds = make([]*models.HoldEntry, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginatedResponse{
			Items:  holds,
			Total:  total,
			Limit:  filters.Limit,
			Offset: filters.Offset,
		},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/holds/{id}
func (h *HoldHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseHoldID(w, r, h.logger)
	if !ok {
		return
	}

	hold, err := h.holdService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: hold}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Approve handles POST /api/v1/holds/{id}/approve
func (h *HoldHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.holdService.Approve)
}

// Reject handles POST /api/v1/holds/{id}/reject
func (h *HoldHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.holdService.Reject)
}

// RequestResume handles POST /api/v1/holds/{id}/request-resume
func (h *HoldHandler) RequestResume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.holdService.RequestResume)
}

// ApproveResume handles POST /api/v1/holds/{id}/approve-resume
func (h *HoldHandler) ApproveResume(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.holdService.ApproveResume)
}

// RejectResume handles POST /api/v1/holds/{id}/reject-resume
func (h *HoldHandler) RejectResume(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.holdService.RejectResume)
}

// Cancel handles POST /api/v1/holds/{id}/cancel
func (h *HoldHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.holdService.Cancel)
}

// decide runs an approval-style transition, attributing the decision to the
// authenticated user, and responds with the updated hold. The service layer
// enforces the leader-or-above requirement.
func (h *HoldHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, holdID, approverID uuid.UUID) error) {
	id, ok := ParseHoldID(w, r, h.logger)
	if !ok {
		return
	}

	approverID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := fn(r.Context(), id, approverID); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	h.respondWithHold(w, r, id)
}

// transition runs a requester-side transition and responds with the updated
// hold.
func (h *HoldHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, holdID uuid.UUID) error) {
	id, ok := ParseHoldID(w, r, h.logger)
	if !ok {
		return
	}

	if err := fn(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	h.respondWithHold(w, r, id)
}

func (h *HoldHandler) respondWithHold(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	hold, err := h.holdService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: hold}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
