package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/audit"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PaginatedResponse wraps list results with paging metadata.
type PaginatedResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// serviceErrorStatus maps a service-layer error to an HTTP status and a
// stable error code.
func serviceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrClientAccessDenied):
		return http.StatusForbidden, "client_access_denied"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperrors.ErrLastAdmin):
		return http.StatusConflict, "last_admin"
	case errors.Is(err, apperrors.ErrPrimaryAssignment):
		return http.StatusConflict, "primary_assignment"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondServiceError translates a service-layer error into the API error
// shape. Cross-client denials are audited before the 403 goes out; they are
// never downgraded to not-found. Unexpected errors are logged and answered
// with a generic message.
//
// clientID is the client the request was about, when the handler knows it;
// uuid.Nil otherwise.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error, clientID uuid.UUID, auditor *audit.SecurityAuditor, logger *zap.Logger) {
	status, code := serviceErrorStatus(err)

	switch status {
	case http.StatusForbidden:
		if auditor != nil {
			auditor.LogAccessDenied(r.Context(), clientID, r.URL.Path, r.RemoteAddr)
		}
	case http.StatusInternalServerError:
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		ErrorResponse(w, status, code, "Internal server error")
		return
	}

	ErrorResponse(w, status, code, err.Error())
}
