// Package auth validates the JWTs opsline-central mints for the engine.
// Tokens arrive as a browser cookie or a bearer header, are verified
// against the issuer's JWKS keys, and land in the request context as
// *Claims for downstream handlers and services.
package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the engine's view of a token minted by opsline-central.
// RegisteredClaims carries the standard fields (sub, iss, aud, exp); the
// custom fields snapshot the user's role and client assignments as they
// stood when central issued the token. The engine trusts that snapshot for
// the lifetime of the session, so assignment changes apply on the next
// token, not mid-session.
type Claims struct {
	jwt.RegisteredClaims
	Email           string   `json:"email,omitempty"`
	Role            string   `json:"role,omitempty"` // one of models.ValidRoles
	ClientIDs       []string `json:"cids,omitempty"` // assigned client UUIDs
	PrimaryClientID string   `json:"pcid,omitempty"`
	CAPI            string   `json:"capi,omitempty"` // opsline-central API base URL
}
