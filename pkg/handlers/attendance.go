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

// AttendanceHandler handles attendance entry HTTP requests.
type AttendanceHandler struct {
	attendanceService services.AttendanceService
	auditor           *audit.SecurityAuditor
	logger            *zap.Logger
}

// NewAttendanceHandler creates a new attendance entry handler.
func NewAttendanceHandler(attendanceService services.AttendanceService, auditor *audit.SecurityAuditor, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		auditor:           auditor,
		logger:            logger,
	}
}

// RegisterRoutes registers the attendance entry routes on the given mux.
func (h *AttendanceHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/attendance-entries"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Delete)))
}

// Hours fields use flexible types: tablet and gateway clients post them as
// strings as often as numbers.
type attendanceEntryRequest struct {
	ClientID       uuid.UUID              `json:"client_id"`
	EmployeeRef    string                 `json:"employee_ref"`
	EntryDate      string                 `json:"entry_date"`
	ScheduledHours jsonutil.FlexibleFloat `json:"scheduled_hours"`
	AbsenceHours   jsonutil.FlexibleFloat `json:"absence_hours"`
}

// decodeAttendanceEntry reads and converts the request body. Returns false
// after writing an error response when the body is unusable.
func (h *AttendanceHandler) decodeAttendanceEntry(w http.ResponseWriter, r *http.Request) (*models.AttendanceEntry, bool) {
	var req attendanceEntryRequest
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
		"employee_ref": req.EmployeeRef,
	}) {
		return nil, false
	}

	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, false
	}

	return &models.AttendanceEntry{
		ClientID:       req.ClientID,
		EmployeeRef:    req.EmployeeRef,
		EntryDate:      entryDate,
		ScheduledHours: float64(req.ScheduledHours),
		AbsenceHours:   float64(req.AbsenceHours),
		CreatedBy:      userID,
	}, true
}

// Create handles POST /api/v1/attendance-entries
func (h *AttendanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeAttendanceEntry(w, r)
	if !ok {
		return
	}

	if err := h.attendanceService.Create(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/attendance-entries
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseEntryFilters(r)

	entries, total, err := h.attendanceService.List(r.Context(), filters)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if entries == nil {
		entries = make([]*models.AttendanceEntry, 0)
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

// Get handles GET /api/v1/attendance-entries/{id}
func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.attendanceService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/attendance-entries/{id}
func (h *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	entry, ok := h.decodeAttendanceEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id

	if err := h.attendanceService.Update(r.Context(), entry); err != nil {
		RespondServiceError(w, r, err, entry.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/v1/attendance-entries/{id}
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntryID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.attendanceService.Delete(r.Context(), id); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Attendance entry deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
