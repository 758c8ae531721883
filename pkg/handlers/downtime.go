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

// DowntimeHandler handles downtime entry HTTP requests.
type DowntimeHandler struct {
	downtimeService services.DowntimeService
	auditor         *audit.SecurityAuditor
	logger          *zap.Logger
}

// NewDowntimeHandler creates a new downtime entry handler.
func NewDowntimeHandler(downtimeService services.DowntimeService, auditor *audit.SecurityAuditor, logger *zap.Logger) *DowntimeHandler {
	return &DowntimeHandler{
		downtimeService: downtimeService,
		auditor:         auditor,
		logger:          logger,
	}
}

// RegisterRoutes registers the downtime entry routes on the given mux.
func (h *DowntimeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/downtime-entries"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Delete)))
}

// DurationMinutes uses a flexible type: tablet and gateway clients post it
// as a string as often as a number.
type downtimeEntryRequest struct {
	ClientID        uuid.UUID            `json:"client_id"`
	ShiftID         uuid.UUID            `json:"shift_id"`
	EntryDate       string               `json:"entry_date"`
	DurationMinutes jsonutil.FlexibleInt `json:"duration_minutes"`
	Reason          string               `json:"reason"`
}

// decodeDowntimeEntry reads and converts the request body. Returns false
// after writing an error response when the body is unusable.
func (h *DowntimeHandler) decodeDowntimeEntry(w http.ResponseWriter, r *http.Request) (*models.DowntimeEntry, bool) {
	var req downtimeEntryRequest
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
		"reason": req.Reason,
	}) {
		return nil, false
	}

	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, false
	}

	return &models.DowntimeEntry{
		ClientID:        req.ClientID,
		ShiftID:         req.ShiftID,
		EntryDate:       entryDate,
		DurationMinutes: int(req.DurationMinutes),
		Reason:          req.Reason,
		CreatedBy:       userID,
	}, true
}

// Create handles POST /api/v1/downtime-entries
func (h *DowntimeHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeDowntimeEntry(w, r)
	if !ok {
		return
	}

	if err := h.downtimeService.Create(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/downtime-entries
func (h *DowntimeHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseEntryFilters(r)

	entries, total, err := h.downtimeService.List(r.Context(), filters)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if entries == nil {
		entries = make([]*models.DowntimeEntry, 0)
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

// Get handles GET /api/v1/downtime-entries/{id}
func (h *DowntimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.downtimeService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/downtime-entries/{id}
func (h *DowntimeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, ok := h.decodeDowntimeEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id

	if err := h.downtimeService.Update(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/v1/downtime-entries/{id}
func (h *DowntimeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.downtimeService.Delete(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Downtime entry deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
