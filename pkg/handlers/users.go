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

// UserHandler handles user and client assignment administration. All routes
// require the admin role. Assignment changes here feed the scopes
// opsline-central mints into tokens at the next login.
type UserHandler struct {
	userService services.UserService
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewUserHandler creates a new user administration handler.
func NewUserHandler(userService services.UserService, auditor *audit.SecurityAuditor, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		auditor:     auditor,
		logger:      logger,
	}
}

// RegisterRoutes registers the user administration routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/users"
	admin := authMiddleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("POST "+base, admin(scopeMiddleware(h.Provision)))
	mux.HandleFunc("GET "+base, admin(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", admin(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}/role", admin(scopeMiddleware(h.UpdateRole)))
	mux.HandleFunc("DELETE "+base+"/{id}", admin(scopeMiddleware(h.Deactivate)))
	mux.HandleFunc("GET "+base+"/{id}/assignments", admin(scopeMiddleware(h.ListAssignments)))
	mux.HandleFunc("POST "+base+"/{id}/assignments", admin(scopeMiddleware(h.Assign)))
	mux.HandleFunc("DELETE "+base+"/{id}/assignments/{client_id}", admin(scopeMiddleware(h.Unassign)))
	mux.HandleFunc("PUT "+base+"/{id}/assignments/{client_id}/primary", admin(scopeMiddleware(h.SetPrimary)))
	mux.HandleFunc("GET "+base+"/{id}/scope", admin(scopeMiddleware(h.ScopeSnapshot)))
}

type userRequest struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type assignClientRequest struct {
	ClientID uuid.UUID `json:"client_id"`
}

// Provision handles POST /api/v1/users
//
// Same create-or-update semantics as the opsline-central provisioning call,
// exposed to admins for manual onboarding.
func (h *UserHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if !screenFreeText(w, r, uuid.Nil, h.auditor, map[string]string{
		"name": req.Name,
	}) {
		return
	}

	user := &models.User{
		ID:     req.ID,
		Email:  req.Email,
		Name:   req.Name,
		Role:   req.Role,
		Active: true,
	}

	if err := h.userService.Provision(r.Context(), user); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "user_provision", user.ID.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: user}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if users == nil {
		users = make([]*models.User, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: users}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: user}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateRole handles PUT /api/v1/users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.userService.UpdateRole(r.Context(), id, req.Role); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "user_role_update", id.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Role updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Deactivate handles DELETE /api/v1/users/{id}
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.userService.Deactivate(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "user_deactivate", id.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "User deactivated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListAssignments handles GET /api/v1/users/{id}/assignments
func (h *UserHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	assignments, err := h.userService.ListAssignments(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if assignments == nil {
		assignments = make([]*models.ClientAssignment, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: assignments}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Assign handles POST /api/v1/users/{id}/assignments
//
// Grants the user access to a client. The first active assignment becomes
// primary; operators are limited to a single active assignment.
func (h *UserHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req assignClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.ClientID == uuid.Nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_client_id", "client_id is required")
		return
	}

	if err := h.userService.Assign(r.Context(), id, req.ClientID); err != nil {
		RespondServiceError(w, r, err, req.ClientID, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "assignment_create", id.String()+":"+req.ClientID.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Message: "Client assigned"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Unassign handles DELETE /api/v1/users/{id}/assignments/{client_id}
func (h *UserHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}
	clientID, ok := ParseAssignmentClientID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.userService.Unassign(r.Context(), id, clientID); err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "assignment_remove", id.String()+":"+clientID.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Client unassigned"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetPrimary handles PUT /api/v1/users/{id}/assignments/{client_id}/primary
func (h *UserHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}
	clientID, ok := ParseAssignmentClientID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.userService.SetPrimary(r.Context(), id, clientID); err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	h.auditor.LogAdminAction(r.Context(), "assignment_set_primary", id.String()+":"+clientID.String(), r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Primary assignment updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ScopeSnapshot handles GET /api/v1/users/{id}/scope
//
// Returns the role and active client IDs in the same shape opsline-central
// embeds into issued tokens, for verifying what a user will see at next
// login.
func (h *UserHandler) ScopeSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	snapshot, err := h.userService.ScopeSnapshot(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: snapshot}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
