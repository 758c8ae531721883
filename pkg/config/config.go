package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for opsline-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// OAuth configuration
	OAuth OAuthConfig `yaml:"oauth"`

	// AuthServerURL is the opsline-central base URL.
	// Used for constructing OAuth redirect URLs.
	AuthServerURL string `yaml:"auth_server_url" env:"AUTH_SERVER_URL" env-default:""`

	// CookieDomain is the domain for auth cookies (optional).
	// If empty, it will be auto-derived from BaseURL.
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional - dashboard caching is skipped when unset)
	Redis RedisConfig `yaml:"redis"`

	// KPI calculation and scheduling configuration
	KPI KPIConfig `yaml:"kpi"`

	// SessionSecret signs the short-lived OAuth session cookie.
	// Server will fail to start if this is not set.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML

	// CentralServiceToken authenticates engine-to-central internal calls.
	// Scope change notifications are disabled when unset.
	CentralServiceToken string `yaml:"-" env:"CENTRAL_SERVICE_TOKEN"` // Secret - not in YAML
}

// OAuthConfig holds OAuth client configuration.
type OAuthConfig struct {
	// ClientID is the OAuth client ID registered with opsline-central.
	ClientID string `yaml:"client_id" env:"OAUTH_CLIENT_ID" env-default:"opsline-engine"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without opsline-central.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:"https://central.opsline.io=https://central.opsline.io/.well-known/jwks.json"`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"opsline"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"opsline_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration for dashboard caching.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// KPIConfig holds KPI calculation and background scheduling settings.
type KPIConfig struct {
	// DashboardCacheTTLSeconds is how long computed dashboard summaries stay cached.
	DashboardCacheTTLSeconds int `yaml:"dashboard_cache_ttl_seconds" env:"KPI_DASHBOARD_CACHE_TTL_SECONDS" env-default:"300"`
	// HoldAgingSweepMinutes is how often the hold aging sweep runs.
	HoldAgingSweepMinutes int `yaml:"hold_aging_sweep_minutes" env:"KPI_HOLD_AGING_SWEEP_MINUTES" env-default:"60"`
	// HoldAgingThresholdDays marks holds as aged after this many days on hold.
	// Used for clients that have not set their own threshold.
	HoldAgingThresholdDays int `yaml:"hold_aging_threshold_days" env:"KPI_HOLD_AGING_THRESHOLD_DAYS" env-default:"7"`
	// InferenceWindow is how many recent entries the cycle time estimator averages over.
	InferenceWindow int `yaml:"inference_window" env:"KPI_INFERENCE_WINDOW" env-default:"10"`
	// OTDGraceDays is the delivery grace period for clients in STANDARD OTD mode.
	OTDGraceDays int `yaml:"otd_grace_days" env:"KPI_OTD_GRACE_DAYS" env-default:"2"`
}

// DashboardCacheTTL returns the dashboard cache TTL as a duration.
func (c *KPIConfig) DashboardCacheTTL() time.Duration {
	return time.Duration(c.DashboardCacheTTLSeconds) * time.Second
}

// HoldAgingSweepInterval returns the hold aging sweep interval as a duration.
func (c *KPIConfig) HoldAgingSweepInterval() time.Duration {
	return time.Duration(c.HoldAgingSweepMinutes) * time.Minute
}

// Validate rejects KPI settings that would break calculations: a zero
// inference window divides by zero, and a non-positive sweep interval
// stalls the aging scheduler.
func (c *KPIConfig) Validate() error {
	if c.InferenceWindow < 1 {
		return fmt.Errorf("kpi.inference_window must be at least 1, got %d", c.InferenceWindow)
	}
	if c.HoldAgingSweepMinutes < 1 {
		return fmt.Errorf("kpi.hold_aging_sweep_minutes must be at least 1, got %d", c.HoldAgingSweepMinutes)
	}
	if c.HoldAgingThresholdDays < 1 {
		return fmt.Errorf("kpi.hold_aging_threshold_days must be at least 1, got %d", c.HoldAgingThresholdDays)
	}
	if c.OTDGraceDays < 0 {
		return fmt.Errorf("kpi.otd_grace_days must not be negative, got %d", c.OTDGraceDays)
	}
	if c.DashboardCacheTTLSeconds < 0 {
		return fmt.Errorf("kpi.dashboard_cache_ttl_seconds must not be negative, got %d", c.DashboardCacheTTLSeconds)
	}
	return nil
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD, REDIS_PASSWORD,
// SESSION_SECRET) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	// Parse complex fields
	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	// Validate TLS configuration
	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.KPI.Validate(); err != nil {
		return nil, fmt.Errorf("invalid KPI configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	// Parse JWKS endpoints from string to map
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ValidateAuthURL validates an auth_url against the JWKS endpoints whitelist.
// Returns the validated auth URL and an empty error string on success.
// If authURL is empty, returns the default AuthServerURL.
// If authURL is provided but not in the whitelist, returns empty string and error message.
func (c *Config) ValidateAuthURL(authURL string) (string, string) {
	// If no auth_url provided, use default
	if authURL == "" {
		return c.AuthServerURL, ""
	}

	// Check if auth_url is in the JWKS endpoints whitelist
	if _, ok := c.Auth.JWKSEndpoints[authURL]; ok {
		return authURL, ""
	}

	// auth_url provided but not in whitelist - reject
	return "", "auth_url not in allowed list"
}
