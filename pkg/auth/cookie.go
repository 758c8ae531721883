package auth

import (
	"net/url"
	"strings"
)

// CookieSettings are the security attributes for the JWT cookie, derived
// from where the engine is hosted.
type CookieSettings struct {
	// Secure restricts the cookie to HTTPS transport.
	Secure bool
	// Domain widens the cookie to a parent domain (".opsline.io") so the
	// dashboard SPA and the engine API can share it. Empty means the
	// cookie stays pinned to the exact host.
	Domain string
}

// sharedCookieDomains are the parent domains the engine is allowed to
// widen its cookie to. Order matters: the first suffix match wins, so the
// more specific dev domain precedes the production one.
var sharedCookieDomains = []string{".dev.opsline.io", ".opsline.io", ".internal"}

// DeriveCookieSettings picks cookie attributes for the deployment at
// baseURL. Localhost keeps HTTP workable for development; hosted
// deployments get Secure plus a shared parent domain when the host sits
// under one of the known opsline zones. Unknown hosts (customer-managed
// installs) stay host-pinned. A non-empty configDomain overrides the
// domain derivation entirely.
func DeriveCookieSettings(baseURL string, configDomain string) CookieSettings {
	if configDomain != "" {
		return CookieSettings{Secure: isHTTPS(baseURL), Domain: configDomain}
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return CookieSettings{Secure: true}
	}

	hostname := parsed.Hostname()
	if hostname == "localhost" || hostname == "127.0.0.1" {
		return CookieSettings{Secure: parsed.Scheme != "http"}
	}

	settings := CookieSettings{Secure: parsed.Scheme != "http"}
	for _, domain := range sharedCookieDomains {
		if strings.HasSuffix(hostname, domain) {
			settings.Domain = domain
			break
		}
	}
	return settings
}

// isHTTPS reports whether baseURL uses HTTPS. Empty or unparseable URLs
// count as HTTPS so a misconfiguration fails closed.
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return true
	}
	return parsed.Scheme != "http"
}
