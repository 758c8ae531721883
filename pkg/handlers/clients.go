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

// ScopeMiddleware resolves the authenticated user's claims into an access
// scope in the request context. Handlers behind it can rely on a scope being
// present; repositories refuse to run without one.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ClientHandler handles client administration HTTP requests. All routes
// require the admin role; clients are tenants, not per-tenant data.
type ClientHandler struct {
	clientService services.ClientService
	auditor       *audit.SecurityAuditor
	logger        *zap.Logger
}

// NewClientHandler creates a new client administration handler.
func NewClientHandler(clientService services.ClientService, auditor *audit.SecurityAuditor, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		auditor:       auditor,
		logger:        logger,
	}
}

// RegisterRoutes registers the client administration routes on the given mux.
func (h *ClientHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/clients"
	admin := authMiddleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("POST "+base, admin(scopeMiddleware(h.Provision)))
	mux.HandleFunc("GET "+base, admin(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", admin(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", admin(scopeMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", admin(scopeMiddleware(h.Deactivate)))
}

type clientRequest struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	Code                   string    `json:"code"`
	OTDMode                string    `json:"otd_mode"`
	OTDGraceDays           int       `json:"otd_grace_days"`
	EfficiencyTarget       float64   `json:"efficiency_target"`
	HoldAgingThresholdDays int       `json:"hold_aging_threshold_days"`
}

// decodeClient reads and converts the request body. Returns false after
// writing an error response when the body is unusable.
func (h *ClientHandler) decodeClient(w http.ResponseWriter, r *http.Request) (*models.Client, bool) {
	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return nil, false
	}

	if !screenFreeText(w, r, req.ID, h.auditor, map[string]string{
		"name": req.Name,
		"code": req.Code,
	}) {
		return nil, false
	}

	return &models.Client{
		ID:                     req.ID,
		Name:                   req.Name,
		Code:                   req.Code,
		OTDMode:                req.OTDMode,
		OTDGraceDays:           req.OTDGraceDays,
		EfficiencyTarget:       req.EfficiencyTarget,
		HoldAgingThresholdDays: req.HoldAgingThresholdDays,
		Active:                 true,
	}, true
}

// Provision handles POST /api/v1/clients
//
// Same create-or-update semantics as the opsline-central provisioning call,
// exposed to admins for manual onboarding.
func (h *ClientHandler) Provision(w http.ResponseWriter, r *http.Request) {
	client, ok := h.decodeClient(w, r)
	if !ok {
		return
	}

	if err := h.clientService.Provision(r.Context(), client); err != nil {
		RespondServiceError(w, r, err, client.ID, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "client_provision", client.ID.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: client}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientService.List(r.Context())
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if clients == nil {
		clients = make([]*models.Client, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: clients}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}

	client, err := h.clientService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, id, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: client}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}

	client, ok := h.decodeClient(w, r)
	if !ok {
		return
	}
	client.ID = id

	if err := h.clientService.Update(r.Context(), client); err != nil {
		RespondServiceError(w, r, err, id, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "client_update", id.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: client}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Deactivate handles DELETE /api/v1/clients/{id}
func (h *ClientHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.clientService.Deactivate(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, id, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "client_deactivate", id.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Client deactivated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
