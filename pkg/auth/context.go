package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// contextKey is unexported so other packages cannot collide with our keys.
type contextKey string

const (
	// ClaimsKey holds the validated *Claims for the request.
	ClaimsKey contextKey = "claims"
	// TokenKey holds the raw JWT string. The engine forwards it on calls
	// it makes to opsline-central on the user's behalf.
	TokenKey contextKey = "token"
)

// GetClaims returns the claims stored by the auth middleware. The second
// return is false when the request never passed authentication.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

// GetToken returns the raw JWT for the request, or false when absent.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetUserIDFromContext returns the subject claim, or "" for requests that
// never authenticated. Callers that must have an identity should use
// RequireUserUUIDFromContext instead.
func GetUserIDFromContext(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok {
		return claims.Subject
	}
	return ""
}

// GetRoleFromContext returns the role claim, or "" for requests that
// never authenticated.
func GetRoleFromContext(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok {
		return claims.Role
	}
	return ""
}

// GetUserUUIDFromContext parses the subject claim as a UUID. Returns
// uuid.Nil and false when the request is unauthenticated or the subject
// is not a UUID (service tokens, for example, use plain names).
func GetUserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(GetUserIDFromContext(ctx))
	return userID, err == nil
}

// RequireUserUUIDFromContext returns the acting user's UUID, or an error
// when the request carries no usable identity. Use it wherever authorship
// must be recorded: entry submission, hold requests and approvals.
func RequireUserUUIDFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := GetUserUUIDFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("no valid user identity in request context")
	}
	return userID, nil
}
