package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/config"
)

// OAuthServerMetadata is the OAuth 2.0 Authorization Server Metadata
// document (RFC 8414). The engine serves it so the dashboard SPA can
// discover opsline-central's endpoints without hardcoding them.
type OAuthServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSUri                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// WellKnownHandler serves the /.well-known/* discovery endpoints.
type WellKnownHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewWellKnownHandler creates a new WellKnownHandler.
func NewWellKnownHandler(cfg *config.Config, logger *zap.Logger) *WellKnownHandler {
	return &WellKnownHandler{
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the discovery endpoints. They are public:
// clients need them before they have any token.
func (h *WellKnownHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /.well-known/oauth-authorization-server", h.OAuthDiscovery)
}

// OAuthDiscovery handles GET /.well-known/oauth-authorization-server.
//
// An optional auth_url query parameter selects which auth server the
// metadata describes. It must be in the JWKS issuer whitelist; anything
// else is rejected so the endpoint cannot be used to point clients at an
// attacker-controlled authorization server.
func (h *WellKnownHandler) OAuthDiscovery(w http.ResponseWriter, r *http.Request) {
	authURL := r.URL.Query().Get("auth_url")
	validatedAuthURL, errMsg := h.cfg.ValidateAuthURL(authURL)
	if errMsg != "" {
		h.logger.Warn("Rejected auth_url in OAuth discovery",
			zap.String("auth_url", authURL),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("error", errMsg))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_auth_url", "Invalid auth_url: not in allowed list"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	metadata := OAuthServerMetadata{
		Issuer:                validatedAuthURL,
		AuthorizationEndpoint: validatedAuthURL + "/authorize",
		TokenEndpoint:         validatedAuthURL + "/token",
		JWKSUri:               validatedAuthURL + "/.well-known/jwks.json",
		ResponseTypesSupported: []string{
			"code",
		},
		GrantTypesSupported: []string{
			"authorization_code",
		},
		CodeChallengeMethodsSupported: []string{
			"S256", // PKCE is mandatory; central registers the engine as a public client
		},
		ScopesSupported: []string{
			"engine:access",
		},
		TokenEndpointAuthMethodsSupported: []string{
			"none",
		},
	}

	// The default document is static; responses for an explicit auth_url
	// depend on the query and must not be shared from cache.
	if authURL == "" {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "private, no-cache")
	}

	if err := WriteJSON(w, http.StatusOK, metadata); err != nil {
		h.logger.Error("Failed to encode OAuth metadata", zap.Error(err))
	}
}
