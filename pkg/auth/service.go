package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// JWTCookieName is the cookie browser clients carry the session JWT in.
const JWTCookieName = "opsline_jwt"

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingRole          = errors.New("missing role in token")
	ErrRoleNotAllowed       = errors.New("role not allowed for this operation")
)

// AuthService validates request credentials and enforces role checks.
// Middleware depends on this interface rather than the concrete JWKS
// client so handler tests can stub authentication outcomes.
type AuthService interface {
	// ValidateRequest extracts the JWT from the opsline_jwt cookie or the
	// Authorization header (in that order) and validates it. Returns the
	// claims and the raw token string.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireRole rejects claims whose role is not in allowed.
	RequireRole(claims *Claims, allowed ...string) error
}

type authService struct {
	jwks   JWKSClientInterface
	logger *zap.Logger
}

// NewAuthService creates an AuthService backed by the given JWKS client.
func NewAuthService(jwksClient JWKSClientInterface, logger *zap.Logger) AuthService {
	return &authService{jwks: jwksClient, logger: logger}
}

// tokenFromRequest finds the JWT in the request. Browser traffic carries
// it in the session cookie; API clients send a bearer header. The cookie
// wins when both are present.
func tokenFromRequest(r *http.Request) (token, source string, err error) {
	if cookie, err := r.Cookie(JWTCookieName); err == nil {
		return cookie.Value, "cookie", nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "", ErrMissingAuthorization
	}
	scheme, credentials, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || credentials == "" || strings.Contains(credentials, " ") {
		return "", "", ErrInvalidAuthFormat
	}
	return credentials, "header", nil
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	tokenString, source, err := tokenFromRequest(r)
	if err != nil {
		s.logger.Debug("Request carried no usable credentials",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", err
	}

	claims, err := s.jwks.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", source))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func (s *authService) RequireRole(claims *Claims, allowed ...string) error {
	if claims.Role == "" {
		return ErrMissingRole
	}
	if slices.Contains(allowed, claims.Role) {
		return nil
	}
	s.logger.Warn("Role not allowed",
		zap.String("role", claims.Role),
		zap.Strings("allowed", allowed))
	return ErrRoleNotAllowed
}

var _ AuthService = (*authService)(nil)
