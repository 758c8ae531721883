package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// CentralHandler serves the internal endpoints opsline-central calls:
// tenant and account provisioning, and scope lookups when minting tokens.
// All routes require a central service token; they carry no user claims, so
// the handlers run under the system scope.
type CentralHandler struct {
	clientService services.ClientService
	userService   services.UserService
	logger        *zap.Logger
}

// NewCentralHandler creates a new central integration handler.
func NewCentralHandler(clientService services.ClientService, userService services.UserService, logger *zap.Logger) *CentralHandler {
	return &CentralHandler{
		clientService: clientService,
		userService:   userService,
		logger:        logger,
	}
}

// RegisterRoutes registers the internal routes on the given mux.
func (h *CentralHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /internal/clients", authMiddleware.RequireCentralService(h.ProvisionClient))
	mux.HandleFunc("POST /internal/users", authMiddleware.RequireCentralService(h.ProvisionUser))
	mux.HandleFunc("GET /internal/users/{id}/scope", authMiddleware.RequireCentralService(h.UserScope))
}

// ProvisionClient handles POST /internal/clients
func (h *CentralHandler) ProvisionClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	client := &models.Client{
		ID:                     req.ID,
		Name:                   req.Name,
		Code:                   req.Code,
		OTDMode:                req.OTDMode,
		OTDGraceDays:           req.OTDGraceDays,
		EfficiencyTarget:       req.EfficiencyTarget,
		HoldAgingThresholdDays: req.HoldAgingThresholdDays,
		Active:                 true,
	}

	ctx := access.SetScope(r.Context(), access.SystemScope())
	if err := h.clientService.Provision(ctx, client); err != nil {
		RespondServiceError(w, r, err, client.ID, nil, h.logger)
		return
	}

	h.logger.Info("Client provisioned by central",
		zap.String("client_id", client.ID.String()),
		zap.String("code", client.Code))

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: client}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ProvisionUser handles POST /internal/users
func (h *CentralHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user := &models.User{
		ID:     req.ID,
		Email:  req.Email,
		Name:   req.Name,
		Role:   req.Role,
		Active: true,
	}

	ctx := access.SetScope(r.Context(), access.SystemScope())
	if err := h.userService.Provision(ctx, user); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, nil, h.logger)
		return
	}

	h.logger.Info("User provisioned by central",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role))

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: user}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UserScope handles GET /internal/users/{id}/scope
//
// opsline-central calls this at token minting time; the response is the
// claims material (role, client IDs, primary) for the user's next session.
func (h *CentralHandler) UserScope(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	ctx := access.SetScope(r.Context(), access.SystemScope())
	snapshot, err := h.userService.ScopeSnapshot(ctx, id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, nil, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: snapshot}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
