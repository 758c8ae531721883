// Package access resolves a request's JWT claims into an access scope and
// applies that scope to every client-bound read and write. The scope is
// resolved once per request by middleware; repositories refuse to run
// without one, so there is no unscoped query path.
package access

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

// Scope is the set of clients a request may touch. Unrestricted scopes
// (admin, poweruser) carry no client list and match everything. A
// restricted scope with an empty client list is valid: list queries return
// nothing and direct fetches are denied.
type Scope struct {
	UserID       uuid.UUID
	Role         string
	ClientIDs    []uuid.UUID
	Unrestricted bool
}

// Resolve builds a Scope from validated JWT claims. Operators are limited
// to at most one assigned client; a token claiming more is malformed and is
// rejected rather than widened or narrowed.
func Resolve(claims *auth.Claims) (*Scope, error) {
	if claims == nil {
		return nil, fmt.Errorf("no claims to resolve")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject in claims: %w", err)
	}

	if !models.IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, claims.Role)
	}

	if models.IsPrivilegedRole(claims.Role) {
		return &Scope{UserID: userID, Role: claims.Role, Unrestricted: true}, nil
	}

	clientIDs := make([]uuid.UUID, 0, len(claims.ClientIDs))
	for _, raw := range claims.ClientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid client ID in claims: %w", err)
		}
		clientIDs = append(clientIDs, id)
	}

	if claims.Role == models.RoleOperator && len(clientIDs) > 1 {
		return nil, fmt.Errorf("%w: operator assigned %d clients", apperrors.ErrInvalidRole, len(clientIDs))
	}

	return &Scope{UserID: userID, Role: claims.Role, ClientIDs: clientIDs}, nil
}

// CanAccessClient reports whether the scope includes the client.
func (s *Scope) CanAccessClient(clientID uuid.UUID) bool {
	if s.Unrestricted {
		return true
	}
	for _, id := range s.ClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// RequireClient returns ErrClientAccessDenied when the scope does not
// include the client. Direct fetches of another tenant's row fail loudly
// with this error; they never degrade into an empty result.
func (s *Scope) RequireClient(clientID uuid.UUID) error {
	if !s.CanAccessClient(clientID) {
		return fmt.Errorf("%w: client %s", apperrors.ErrClientAccessDenied, clientID)
	}
	return nil
}

// FilterClientIDs intersects the requested client IDs with the scope. An
// empty request means "everything visible" and returns the scope's own
// list (nil for unrestricted scopes, meaning no filter).
func (s *Scope) FilterClientIDs(requested []uuid.UUID) []uuid.UUID {
	if s.Unrestricted {
		return requested
	}
	if len(requested) == 0 {
		return s.ClientIDs
	}

	filtered := make([]uuid.UUID, 0, len(requested))
	for _, id := range requested {
		if s.CanAccessClient(id) {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// ClientFilter returns a SQL predicate over the given client ID column and
// its bind arguments, numbered from argIndex. Every scoped repository query
// composes this into its WHERE clause; an empty restricted scope yields
// FALSE so the query returns no rows instead of leaking across tenants.
func (s *Scope) ClientFilter(column string, argIndex int) (string, []any) {
	if s.Unrestricted {
		return "TRUE", nil
	}
	if len(s.ClientIDs) == 0 {
		return "FALSE", nil
	}
	return fmt.Sprintf("%s = ANY($%d)", column, argIndex), []any{s.ClientIDs}
}

// SystemScope returns an unrestricted scope for work that runs outside a
// request: background sweeps and calls from opsline-central. It must be set
// on the context explicitly; nothing grants it by default.
func SystemScope() *Scope {
	return &Scope{Role: models.RoleAdmin, Unrestricted: true}
}
