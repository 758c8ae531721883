// Package central provides a client for communicating with opsline-central.
package central

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for opsline-central responses.
const DefaultTimeout = 10 * time.Second

// ScopeChange describes an access scope mutation that opsline-central must
// pick up before minting the user's next token.
type ScopeChange struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Reason string `json:"reason"`
}

// Client provides access to the opsline-central internal API.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a new opsline-central client. baseURL is the central
// server base URL; serviceToken authenticates this engine instance against
// central's internal endpoints.
func NewClient(baseURL, serviceToken string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger.Named("central"),
	}
}

// NotifyScopeChanged tells opsline-central that a user's role or client
// assignments changed, so the scope claims minted into the next token are
// rebuilt instead of served from central's cache. Tokens already issued keep
// their old scope until they expire.
//
// Transient failures are retried; central also re-reads scopes on token
// refresh, so a lost notification delays the change rather than dropping it.
func (c *Client) NotifyScopeChanged(ctx context.Context, change ScopeChange) error {
	endpoint, err := buildURL(c.baseURL, "internal", "scope-changes")
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode scope change: %w", err)
	}

	c.logger.Info("Notifying opsline-central of scope change",
		zap.String("url", endpoint),
		zap.String("user_id", change.UserID),
		zap.String("reason", change.Reason))

	return retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
		req.Header.Set("Content-Type", "application/json")

		return c.doNotify(req)
	})
}

// doNotify executes the request and maps non-2xx responses to errors.
func (c *Client) doNotify(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call opsline-central: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Error("opsline-central returned error",
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(body)))
	return fmt.Errorf("opsline-central returned status %d: %s", resp.StatusCode, string(body))
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	// Join all path segments
	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}
