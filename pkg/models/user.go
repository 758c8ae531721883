package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform user. Which clients a user can see is not a
// property of the user row itself; it is derived from the user's role and
// active client assignments.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"` // 'operator', 'leader', 'poweruser', 'admin'
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role constants, ordered from least to most privileged.
const (
	RoleOperator  = "operator"
	RoleLeader    = "leader"
	RolePowerUser = "poweruser"
	RoleAdmin     = "admin"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleOperator, RoleLeader, RolePowerUser, RoleAdmin}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsPrivilegedRole reports whether the role sees every client without
// explicit assignments.
func IsPrivilegedRole(role string) bool {
	return role == RolePowerUser || role == RoleAdmin
}

// ClientAssignment links a user to a client. A user with at least one active
// assignment has exactly one marked primary; the primary assignment cannot be
// deactivated while other active assignments remain.
type ClientAssignment struct {
	UserID    uuid.UUID `json:"user_id"`
	ClientID  uuid.UUID `json:"client_id"`
	IsPrimary bool      `json:"is_primary"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserScopeSnapshot is the access scope opsline-central embeds into issued
// tokens. ClientIDs is empty for privileged roles, whose scope comes from the
// role itself.
type UserScopeSnapshot struct {
	UserID          uuid.UUID   `json:"user_id"`
	Role            string      `json:"role"`
	Active          bool        `json:"active"`
	ClientIDs       []uuid.UUID `json:"client_ids"`
	PrimaryClientID *uuid.UUID  `json:"primary_client_id,omitempty"`
}
