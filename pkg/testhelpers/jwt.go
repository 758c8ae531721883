package testhelpers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
)

// MintToken builds an unsigned JWT (alg none) that the auth stack accepts
// when signature verification is disabled. The audience is always "engine"
// because the JWKS client rejects everything else. The first client ID
// doubles as the primary, matching how opsline-central mints real tokens.
func MintToken(t *testing.T, sub, role string, clientIDs ...string) string {
	t.Helper()

	claims := map[string]any{
		"sub": sub,
		"aud": "engine",
	}
	if role != "" {
		claims["role"] = role
	}
	if len(clientIDs) > 0 {
		claims["cids"] = clientIDs
		claims["pcid"] = clientIDs[0]
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal test claims: %v", err)
	}

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	return fmt.Sprintf("%s.%s.", header, base64.RawURLEncoding.EncodeToString(payload))
}

// MintBearerToken is MintToken with the Authorization scheme prepended.
func MintBearerToken(t *testing.T, sub, role string, clientIDs ...string) string {
	return "Bearer " + MintToken(t, sub, role, clientIDs...)
}
