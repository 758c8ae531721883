package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/config"
)

func discoveryConfig() *config.Config {
	return &config.Config{
		BaseURL:       "http://localhost:3443",
		AuthServerURL: "https://central.opsline.io",
		Auth: config.AuthConfig{
			JWKSEndpoints: map[string]string{
				"https://central.opsline.io": "https://central.opsline.io/.well-known/jwks.json",
				"https://staging.opsline.io": "https://staging.opsline.io/.well-known/jwks.json",
			},
		},
	}
}

func TestOAuthDiscovery_DefaultAuthServer(t *testing.T) {
	handler := NewWellKnownHandler(discoveryConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	handler.OAuthDiscovery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metadata OAuthServerMetadata
	if err := json.NewDecoder(rec.Body).Decode(&metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}

	if metadata.Issuer != "https://central.opsline.io" {
		t.Errorf("issuer = %q, want default auth server", metadata.Issuer)
	}
	if metadata.AuthorizationEndpoint != "https://central.opsline.io/authorize" {
		t.Errorf("authorization_endpoint = %q", metadata.AuthorizationEndpoint)
	}
	if metadata.TokenEndpoint != "https://central.opsline.io/token" {
		t.Errorf("token_endpoint = %q", metadata.TokenEndpoint)
	}
	if metadata.JWKSUri != "https://central.opsline.io/.well-known/jwks.json" {
		t.Errorf("jwks_uri = %q", metadata.JWKSUri)
	}
	if len(metadata.CodeChallengeMethodsSupported) != 1 || metadata.CodeChallengeMethodsSupported[0] != "S256" {
		t.Errorf("code_challenge_methods_supported = %v, want [S256]", metadata.CodeChallengeMethodsSupported)
	}
	if len(metadata.ScopesSupported) != 1 || metadata.ScopesSupported[0] != "engine:access" {
		t.Errorf("scopes_supported = %v, want [engine:access]", metadata.ScopesSupported)
	}

	// Default document is static and cacheable.
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestOAuthDiscovery_ExplicitAuthServer(t *testing.T) {
	handler := NewWellKnownHandler(discoveryConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet,
		"/.well-known/oauth-authorization-server?auth_url=https://staging.opsline.io", nil)
	rec := httptest.NewRecorder()
	handler.OAuthDiscovery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metadata OAuthServerMetadata
	if err := json.NewDecoder(rec.Body).Decode(&metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata.Issuer != "https://staging.opsline.io" {
		t.Errorf("issuer = %q, want the requested auth server", metadata.Issuer)
	}

	// Responses shaped by a query parameter must not be shared from cache.
	if got := rec.Header().Get("Cache-Control"); got != "private, no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestOAuthDiscovery_RejectsUnknownAuthServer(t *testing.T) {
	handler := NewWellKnownHandler(discoveryConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet,
		"/.well-known/oauth-authorization-server?auth_url=https://attacker.example.com", nil)
	rec := httptest.NewRecorder()
	handler.OAuthDiscovery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "invalid_auth_url" {
		t.Errorf("error = %q, want invalid_auth_url", body["error"])
	}
}

func TestWellKnownHandler_RegisterRoutes(t *testing.T) {
	handler := NewWellKnownHandler(discoveryConfig(), zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("discovery route not registered, status = %d", rec.Code)
	}
}
