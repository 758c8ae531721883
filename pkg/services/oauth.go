// Package services contains business logic for opsline-engine.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Errors surfaced by the OAuth completion flow.
var (
	ErrInvalidAuthURL      = errors.New("invalid auth URL: not in allowed list")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
)

// oauthCallbackPath is the redirect URI path registered for the engine at
// opsline-central. It must match what the SPA sent on the authorize leg or
// central rejects the exchange.
const oauthCallbackPath = "/oauth/callback"

// OAuthConfig holds the settings for completing the PKCE flow.
type OAuthConfig struct {
	// BaseURL of this engine deployment. The redirect URI derives from it.
	BaseURL string
	// ClientID the engine is registered under at opsline-central.
	ClientID string
	// AuthServerURL is the opsline-central base URL used when the caller
	// does not name one.
	AuthServerURL string
	// JWKSEndpoints doubles as the auth server whitelist: a caller-supplied
	// auth URL is only accepted if the JWKS client also trusts that issuer.
	JWKSEndpoints map[string]string
}

// TokenExchangeRequest carries the values from the SPA's OAuth callback.
type TokenExchangeRequest struct {
	// Code is the single-use authorization code.
	Code string
	// CodeVerifier is the PKCE verifier matching the challenge from the
	// authorize leg.
	CodeVerifier string
	// AuthURL optionally names the auth server to exchange with. Empty
	// means the configured default.
	AuthURL string
}

// TokenResponse is the token endpoint's success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// OAuthService completes the PKCE flow against opsline-central. The engine
// exchanges the code server-side so the JWT can live in an httpOnly cookie
// instead of passing through SPA JavaScript.
type OAuthService interface {
	// ExchangeCodeForToken trades an authorization code for a JWT access token.
	ExchangeCodeForToken(ctx context.Context, req *TokenExchangeRequest) (string, error)
	// ValidateAuthURL resolves an auth server URL against the whitelist,
	// substituting the default for an empty input.
	ValidateAuthURL(authURL string) (string, error)
}

// HTTPClient is the subset of http.Client the service needs, split out so
// tests can substitute a stub.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type oauthService struct {
	config     *OAuthConfig
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewOAuthService builds an OAuthService backed by a default http.Client.
func NewOAuthService(config *OAuthConfig, logger *zap.Logger) OAuthService {
	return NewOAuthServiceWithClient(config, &http.Client{}, logger)
}

// NewOAuthServiceWithClient is NewOAuthService with the HTTP client injected.
func NewOAuthServiceWithClient(config *OAuthConfig, httpClient HTTPClient, logger *zap.Logger) OAuthService {
	return &oauthService{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ OAuthService = (*oauthService)(nil)

func (s *oauthService) ValidateAuthURL(authURL string) (string, error) {
	if authURL == "" {
		return s.config.AuthServerURL, nil
	}
	if _, ok := s.config.JWKSEndpoints[authURL]; ok {
		return authURL, nil
	}
	s.logger.Warn("Rejected auth URL outside the whitelist", zap.String("auth_url", authURL))
	return "", ErrInvalidAuthURL
}

func (s *oauthService) ExchangeCodeForToken(ctx context.Context, req *TokenExchangeRequest) (string, error) {
	authServerURL, err := s.ValidateAuthURL(req.AuthURL)
	if err != nil {
		return "", err
	}

	httpReq, err := s.tokenRequest(ctx, authServerURL, req)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.logger.Error("Token endpoint unreachable",
			zap.String("token_url", httpReq.URL.String()),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return s.decodeTokenResponse(resp)
}

// tokenRequest assembles the form-encoded POST for central's token endpoint.
func (s *oauthService) tokenRequest(ctx context.Context, authServerURL string, req *TokenExchangeRequest) (*http.Request, error) {
	redirectURI, err := url.JoinPath(s.config.BaseURL, oauthCallbackPath)
	if err != nil {
		return nil, fmt.Errorf("build redirect URI: %w", err)
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {s.config.ClientID},
		"code":          {req.Code},
		"code_verifier": {req.CodeVerifier},
		"redirect_uri":  {redirectURI},
	}

	tokenURL := strings.TrimSuffix(authServerURL, "/") + "/token"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return httpReq, nil
}

func (s *oauthService) decodeTokenResponse(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		// Central's error bodies are short JSON; cap the read anyway.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("Token endpoint refused the exchange",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return "", fmt.Errorf("%w: status %d", ErrTokenExchangeFailed, resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: response carried no access token", ErrTokenExchangeFailed)
	}
	return tokenResp.AccessToken, nil
}
