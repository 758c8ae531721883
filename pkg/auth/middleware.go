package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware wraps handlers with authentication checks. It stays thin:
// token extraction and validation live in AuthService, and role policy in
// the route registrations that pick which wrapper to apply.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates auth middleware backed by authService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// authenticate validates the request and, on success, returns a request
// whose context carries the claims and raw token. On failure it writes
// the 401 itself and reports false.
func (m *Middleware) authenticate(w http.ResponseWriter, r *http.Request) (*Claims, *http.Request, bool) {
	claims, token, err := m.authService.ValidateRequest(r)
	if err != nil {
		m.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, nil, false
	}

	ctx := context.WithValue(r.Context(), ClaimsKey, claims)
	ctx = context.WithValue(ctx, TokenKey, token)
	return claims, r.WithContext(ctx), true
}

// RequireAuth admits any authenticated user that carries a role claim.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, r, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		if claims.Role == "" {
			m.writeError(w, http.StatusBadRequest, "bad_request", "Missing role in token")
			return
		}
		next(w, r)
	}
}

// RequireRole admits only users whose role is in allowed. Used on the
// management surfaces (client and user administration).
func (m *Middleware) RequireRole(allowed ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, r, ok := m.authenticate(w, r)
			if !ok {
				return
			}
			if err := m.authService.RequireRole(claims, allowed...); err != nil {
				m.writeError(w, http.StatusForbidden, "forbidden", "Insufficient role")
				return
			}
			next(w, r)
		}
	}
}

// RequireCentralService admits only opsline-central's service identity
// (sub: "central"). It guards the internal surface central calls for
// client provisioning and scope lookups. Service tokens carry no role, so
// RequireAuth would reject them.
func (m *Middleware) RequireCentralService(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, r, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		if claims.Subject != "central" {
			m.logger.Warn("Non-central caller on internal endpoint",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path))
			m.writeError(w, http.StatusForbidden, "forbidden", "Central service authorization required")
			return
		}
		next(w, r)
	}
}

// writeError emits the JSON error envelope shared by all auth failures.
func (m *Middleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
