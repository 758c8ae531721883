package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/config"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// jwtCookieMaxAge caps the session cookie at central's token TTL. The JWT
// inside expires on its own schedule; this just stops the browser from
// resending a token that can no longer validate.
const jwtCookieMaxAge = 86400

// CompleteOAuthRequest is the SPA's payload after the OAuth callback.
type CompleteOAuthRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
	AuthURL      string `json:"auth_url"`
}

// AuthRedirectResponse tells the SPA where to route after login or logout.
type AuthRedirectResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// AuthHandler owns the login completion, logout, and identity endpoints.
type AuthHandler struct {
	oauthService services.OAuthService
	config       *config.Config
	logger       *zap.Logger
}

func NewAuthHandler(oauthService services.OAuthService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		oauthService: oauthService,
		config:       cfg,
		logger:       logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/complete-oauth", h.CompleteOAuth)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.GetMe))
}

// jwtCookie builds the httpOnly session cookie. A negative maxAge yields the
// deletion form of the same cookie, matched on name, path, and domain.
func (h *AuthHandler) jwtCookie(token string, maxAge int) *http.Cookie {
	settings := auth.DeriveCookieSettings(h.config.BaseURL, h.config.CookieDomain)
	return &http.Cookie{
		Name:     auth.JWTCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
		Path:     "/",
		Domain:   settings.Domain,
	}
}

// CompleteOAuth handles POST /api/auth/complete-oauth. The SPA posts the
// authorization code here after central redirects back; the engine performs
// the exchange server-side and sets the JWT as an httpOnly cookie so it never
// passes through page JavaScript.
func (h *AuthHandler) CompleteOAuth(w http.ResponseWriter, r *http.Request) {
	var req CompleteOAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Code == "" || req.State == "" || req.CodeVerifier == "" {
		ErrorResponse(w, http.StatusBadRequest, "missing_parameters", "Missing code, state, or code_verifier")
		return
	}

	token, err := h.oauthService.ExchangeCodeForToken(r.Context(), &services.TokenExchangeRequest{
		Code:         req.Code,
		CodeVerifier: req.CodeVerifier,
		AuthURL:      req.AuthURL,
	})
	if errors.Is(err, services.ErrInvalidAuthURL) {
		h.logger.Warn("Rejected OAuth completion", zap.String("auth_url", req.AuthURL))
		ErrorResponse(w, http.StatusBadRequest, "invalid_auth_url", "Invalid auth_url: not in allowed list")
		return
	}
	if err != nil {
		h.logger.Error("Token exchange failed", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "token_exchange_failed", "Authentication failed")
		return
	}

	http.SetCookie(w, h.jwtCookie(token, jwtCookieMaxAge))

	redirectURL := h.consumeReturnURL(w, r)
	h.logger.Info("OAuth completion successful", zap.String("redirect_url", redirectURL))

	if err := WriteJSON(w, http.StatusOK, AuthRedirectResponse{
		Success:     true,
		RedirectURL: redirectURL,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// consumeReturnURL pops the pre-login URL out of the OAuth session so the SPA
// can land the user where they started. Falls back to the dashboard root.
func (h *AuthHandler) consumeReturnURL(w http.ResponseWriter, r *http.Request) string {
	session, _ := auth.GetSession(r)
	originalURL, _ := session.Values[auth.SessionKeyOriginalURL].(string)
	auth.ClearSessionValues(session)
	if err := auth.SaveSession(r, w, session); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
	}
	if originalURL == "" {
		return "/"
	}
	return originalURL
}

// Logout handles POST /api/auth/logout by expiring the JWT cookie. Token
// revocation is central's concern; the engine only forgets the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.jwtCookie("", -1))

	h.logger.Info("User logged out")

	if err := WriteJSON(w, http.StatusOK, AuthRedirectResponse{
		Success:     true,
		RedirectURL: "/",
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// GetMeResponse is the identity payload for the SPA's session bootstrap.
type GetMeResponse struct {
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	ClientIDs       []string `json:"client_ids"`
	PrimaryClientID string   `json:"primary_client_id,omitempty"`
}

// GetMe handles GET /api/auth/me. It reports the role and client assignments
// as minted into the session token, not the current database state; a changed
// assignment shows up after the next login.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
		return
	}

	response := GetMeResponse{
		Email:           claims.Email,
		Role:            claims.Role,
		ClientIDs:       claims.ClientIDs,
		PrimaryClientID: claims.PrimaryClientID,
	}
	if response.ClientIDs == nil {
		response.ClientIDs = []string{}
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
