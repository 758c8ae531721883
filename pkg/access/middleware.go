package access

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/auth"
)

// WithScope creates middleware that resolves the authenticated user's
// access scope and stores it in the request context. It runs AFTER auth
// middleware; a request whose claims cannot be resolved to a scope is
// rejected here, before any handler or repository runs.
func WithScope(logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok {
				logger.Error("Missing claims in authenticated request")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing authentication context")
				return
			}

			scope, err := Resolve(claims)
			if err != nil {
				if errors.Is(err, apperrors.ErrInvalidRole) {
					logger.Warn("Rejected token with invalid role or assignment cardinality",
						zap.String("subject", claims.Subject),
						zap.String("role", claims.Role),
						zap.Error(err))
					writeError(w, http.StatusForbidden, "invalid_role", "Role not permitted")
					return
				}
				logger.Error("Failed to resolve access scope",
					zap.String("subject", claims.Subject),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_claims", "Invalid access claims")
				return
			}

			ctx := SetScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
