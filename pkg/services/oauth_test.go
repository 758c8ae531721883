package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// httpClientFunc adapts a function to the HTTPClient interface.
type httpClientFunc func(*http.Request) (*http.Response, error)

func (f httpClientFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func oauthTestConfig() *OAuthConfig {
	return &OAuthConfig{
		BaseURL:       "https://engine.example.com",
		ClientID:      "opsline-engine",
		AuthServerURL: "https://central.example.com",
		JWKSEndpoints: map[string]string{
			"https://central.example.com":     "https://central.example.com/.well-known/jwks.json",
			"https://central.dev.example.com": "https://central.dev.example.com/.well-known/jwks.json",
		},
	}
}

func TestOAuthService_ValidateAuthURL(t *testing.T) {
	service := NewOAuthService(oauthTestConfig(), zap.NewNop())

	tests := []struct {
		name    string
		authURL string
		want    string
		wantErr bool
	}{
		{"empty input resolves to default", "", "https://central.example.com", false},
		{"whitelisted URL passes through", "https://central.dev.example.com", "https://central.dev.example.com", false},
		{"unknown URL rejected", "https://malicious.example.com", "", true},
		{"near-miss with trailing slash rejected", "https://central.example.com/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ValidateAuthURL(tt.authURL)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAuthURL) {
					t.Fatalf("expected ErrInvalidAuthURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAuthURL(%q) failed: %v", tt.authURL, err)
			}
			if got != tt.want {
				t.Errorf("ValidateAuthURL(%q) = %q, want %q", tt.authURL, got, tt.want)
			}
		})
	}
}

func TestOAuthService_ExchangeCodeForToken_Success(t *testing.T) {
	var captured *http.Request
	var capturedBody string
	client := httpClientFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		body, _ := io.ReadAll(req.Body)
		capturedBody = string(body)
		return jsonResponse(http.StatusOK, `{"access_token":"jwt-token-here","token_type":"Bearer","expires_in":86400}`), nil
	})

	service := NewOAuthServiceWithClient(oauthTestConfig(), client, zap.NewNop())

	token, err := service.ExchangeCodeForToken(context.Background(), &TokenExchangeRequest{
		Code:         "auth-code-123",
		CodeVerifier: "verifier-456",
	})
	if err != nil {
		t.Fatalf("ExchangeCodeForToken failed: %v", err)
	}
	if token != "jwt-token-here" {
		t.Errorf("expected token 'jwt-token-here', got %q", token)
	}

	if captured.URL.String() != "https://central.example.com/token" {
		t.Errorf("expected exchange at central token endpoint, got %q", captured.URL)
	}
	if ct := captured.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("expected form-encoded request, got Content-Type %q", ct)
	}

	form, err := url.ParseQuery(capturedBody)
	if err != nil {
		t.Fatalf("exchange body is not form-encoded: %v", err)
	}
	wantForm := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     "opsline-engine",
		"code":          "auth-code-123",
		"code_verifier": "verifier-456",
		"redirect_uri":  "https://engine.example.com/oauth/callback",
	}
	for key, want := range wantForm {
		if got := form.Get(key); got != want {
			t.Errorf("form %s = %q, want %q", key, got, want)
		}
	}
}

func TestOAuthService_ExchangeCodeForToken_TrimsAuthServerSlash(t *testing.T) {
	var capturedURL string
	client := httpClientFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"access_token":"tok"}`), nil
	})

	cfg := oauthTestConfig()
	cfg.AuthServerURL = "https://central.example.com/"
	service := NewOAuthServiceWithClient(cfg, client, zap.NewNop())

	if _, err := service.ExchangeCodeForToken(context.Background(), &TokenExchangeRequest{Code: "c", CodeVerifier: "v"}); err != nil {
		t.Fatalf("ExchangeCodeForToken failed: %v", err)
	}
	if capturedURL != "https://central.example.com/token" {
		t.Errorf("trailing slash should not double up, got %q", capturedURL)
	}
}

func TestOAuthService_ExchangeCodeForToken_InvalidAuthURL(t *testing.T) {
	client := httpClientFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request should be sent for a rejected auth URL")
		return nil, nil
	})
	service := NewOAuthServiceWithClient(oauthTestConfig(), client, zap.NewNop())

	_, err := service.ExchangeCodeForToken(context.Background(), &TokenExchangeRequest{
		Code:         "auth-code-123",
		CodeVerifier: "verifier-456",
		AuthURL:      "https://malicious.example.com",
	})
	if !errors.Is(err, ErrInvalidAuthURL) {
		t.Errorf("expected ErrInvalidAuthURL, got %v", err)
	}
}

func TestOAuthService_ExchangeCodeForToken_Failures(t *testing.T) {
	tests := []struct {
		name   string
		client httpClientFunc
	}{
		{
			"token endpoint rejects the grant",
			func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`), nil
			},
		},
		{
			"transport error",
			func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
		},
		{
			"success status without a token",
			func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"token_type":"Bearer"}`), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewOAuthServiceWithClient(oauthTestConfig(), tt.client, zap.NewNop())
			_, err := service.ExchangeCodeForToken(context.Background(), &TokenExchangeRequest{
				Code:         "auth-code-123",
				CodeVerifier: "verifier-456",
			})
			if !errors.Is(err, ErrTokenExchangeFailed) {
				t.Errorf("expected ErrTokenExchangeFailed, got %v", err)
			}
		})
	}
}

func TestOAuthService_ExchangeCodeForToken_MalformedResponse(t *testing.T) {
	client := httpClientFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, "not json"), nil
	})
	service := NewOAuthServiceWithClient(oauthTestConfig(), client, zap.NewNop())

	_, err := service.ExchangeCodeForToken(context.Background(), &TokenExchangeRequest{Code: "c", CodeVerifier: "v"})
	if err == nil || !strings.Contains(err.Error(), "decode token response") {
		t.Errorf("expected decode error, got %v", err)
	}
}
