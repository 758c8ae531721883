package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName names the short-lived cookie that carries OAuth flow state.
const SessionName = "opsline-oauth"

// Keys within the OAuth session.
const (
	SessionKeyState        = "state"
	SessionKeyCodeVerifier = "code_verifier"
	SessionKeyOriginalURL  = "original_url"
)

// oauthSessionMaxAge bounds the session to one authorization round trip.
const oauthSessionMaxAge = 600 // seconds

// Store signs and verifies the OAuth state cookie. It holds the transient
// state of an in-flight authorization (PKCE code verifier, state
// parameter, the URL to return to) and nothing else; the JWT itself lives
// in its own cookie.
var Store *sessions.CookieStore

// InitSessionStore initializes Store from the configured session secret.
// The secret is SHA-256 hashed into the signing key, so any stable
// passphrase works; it must match across restarts and replicas or
// in-flight logins break on redeploy.
func InitSessionStore(secret string) {
	key := sha256.Sum256([]byte(secret))

	Store = sessions.NewCookieStore(key[:])
	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   oauthSessionMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// GetSession returns the request's OAuth session, creating an empty one
// if the cookie is absent or fails verification.
func GetSession(r *http.Request) (*sessions.Session, error) {
	return Store.Get(r, SessionName)
}

// SaveSession writes the session cookie to the response.
func SaveSession(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	return session.Save(r, w)
}

// ClearSessionValues drops all OAuth state once the flow completes.
func ClearSessionValues(session *sessions.Session) {
	delete(session.Values, SessionKeyState)
	delete(session.Values, SessionKeyCodeVerifier)
	delete(session.Values, SessionKeyOriginalURL)
}
