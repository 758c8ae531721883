package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/central"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// UserService defines the interface for user and assignment operations.
type UserService interface {
	// Provision creates or updates a user record. Called by opsline-central
	// when an account is created; idempotent.
	Provision(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// UpdateRole changes a user's role. Returns ErrLastAdmin when demoting
	// the last active admin, ErrValidation when an operator would end up
	// with more than one active assignment.
	UpdateRole(ctx context.Context, userID uuid.UUID, newRole string) error
	// Deactivate disables a user. Returns ErrLastAdmin for the last active
	// admin.
	Deactivate(ctx context.Context, userID uuid.UUID) error

	// Assign grants a user access to a client. The first active assignment
	// becomes primary.
	Assign(ctx context.Context, userID, clientID uuid.UUID) error
	// Unassign revokes access. Returns ErrPrimaryAssignment when the
	// assignment is primary and other active assignments remain.
	Unassign(ctx context.Context, userID, clientID uuid.UUID) error
	// SetPrimary moves the primary flag to an existing active assignment.
	SetPrimary(ctx context.Context, userID, clientID uuid.UUID) error
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.ClientAssignment, error)
	// ScopeSnapshot reports the role and active client IDs for a user, in
	// the shape opsline-central embeds into issued tokens.
	ScopeSnapshot(ctx context.Context, userID uuid.UUID) (*models.UserScopeSnapshot, error)
}

// userService implements UserService.
type userService struct {
	userRepo      repositories.UserRepository
	centralClient *central.Client
	logger        *zap.Logger
}

// NewUserService creates a new user service with dependencies. centralClient
// may be nil, in which case scope change notifications are skipped.
func NewUserService(userRepo repositories.UserRepository, centralClient *central.Client, logger *zap.Logger) UserService {
	return &userService{
		userRepo:      userRepo,
		centralClient: centralClient,
		logger:        logger,
	}
}

// notifyScopeChanged tells opsline-central to rebuild the user's scope claims.
// Best effort: the mutation has already committed, and central re-reads scopes
// at the next token refresh regardless.
func (s *userService) notifyScopeChanged(ctx context.Context, userID uuid.UUID, role, reason string) {
	if s.centralClient == nil {
		return
	}
	err := s.centralClient.NotifyScopeChanged(ctx, central.ScopeChange{
		UserID: userID.String(),
		Role:   role,
		Reason: reason,
	})
	if err != nil {
		s.logger.Warn("Failed to notify opsline-central of scope change",
			zap.String("user_id", userID.String()),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// Provision creates or updates a user record.
func (s *userService) Provision(ctx context.Context, user *models.User) error {
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return fmt.Errorf("%w: valid email is required", apperrors.ErrValidation)
	}
	if !models.IsValidRole(user.Role) {
		return fmt.Errorf("%w: invalid role %q", apperrors.ErrValidation, user.Role)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info("Provisioned user",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role))
	return nil
}

// Get retrieves a user by ID.
func (s *userService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.Get(ctx, id)
}

// List retrieves all users.
func (s *userService) List(ctx context.Context) ([]*models.User, error) {
	return s.userRepo.List(ctx)
}

// UpdateRole changes a user's role.
func (s *userService) UpdateRole(ctx context.Context, userID uuid.UUID, newRole string) error {
	if !models.IsValidRole(newRole) {
		return fmt.Errorf("%w: invalid role %q", apperrors.ErrValidation, newRole)
	}

	// An operator may hold at most one active assignment. Demotions to
	// operator are rejected until the extra assignments are removed.
	if newRole == models.RoleOperator {
		clientIDs, err := s.userRepo.ActiveClientIDs(ctx, userID)
		if err != nil {
			return err
		}
		if len(clientIDs) > 1 {
			return fmt.Errorf("%w: operator role allows at most one active assignment, user has %d",
				apperrors.ErrValidation, len(clientIDs))
		}
	}

	if err := s.userRepo.UpdateRole(ctx, userID, newRole); err != nil {
		return err
	}

	s.logger.Info("Updated user role",
		zap.String("user_id", userID.String()),
		zap.String("role", newRole))
	s.notifyScopeChanged(ctx, userID, newRole, "role_update")
	return nil
}

// Deactivate disables a user.
func (s *userService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.Deactivate(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("Deactivated user", zap.String("user_id", userID.String()))
	s.notifyScopeChanged(ctx, userID, "", "user_deactivate")
	return nil
}

// Assign grants a user access to a client.
func (s *userService) Assign(ctx context.Context, userID, clientID uuid.UUID) error {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	if user.Role == models.RoleOperator {
		clientIDs, err := s.userRepo.ActiveClientIDs(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range clientIDs {
			if id == clientID {
				// Re-assigning the same client is a no-op for the limit.
				clientIDs = nil
				break
			}
		}
		if len(clientIDs) >= 1 {
			return fmt.Errorf("%w: operators may be assigned to at most one client",
				apperrors.ErrValidation)
		}
	}

	assignment := &models.ClientAssignment{
		UserID:   userID,
		ClientID: clientID,
	}
	if err := s.userRepo.Assign(ctx, assignment); err != nil {
		return err
	}

	s.logger.Info("Assigned user to client",
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID.String()),
		zap.Bool("is_primary", assignment.IsPrimary))
	s.notifyScopeChanged(ctx, userID, user.Role, "assignment_create")
	return nil
}

// Unassign revokes a user's access to a client.
func (s *userService) Unassign(ctx context.Context, userID, clientID uuid.UUID) error {
	if err := s.userRepo.Unassign(ctx, userID, clientID); err != nil {
		return err
	}
	s.logger.Info("Unassigned user from client",
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID.String()))
	s.notifyScopeChanged(ctx, userID, "", "assignment_remove")
	return nil
}

// SetPrimary moves the primary flag to the given assignment.
func (s *userService) SetPrimary(ctx context.Context, userID, clientID uuid.UUID) error {
	if err := s.userRepo.SetPrimary(ctx, userID, clientID); err != nil {
		return err
	}
	s.notifyScopeChanged(ctx, userID, "", "assignment_set_primary")
	return nil
}

// ListAssignments retrieves a user's assignments.
func (s *userService) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.ClientAssignment, error) {
	return s.userRepo.ListAssignments(ctx, userID)
}

// ScopeSnapshot reports the access scope opsline-central should embed into
// tokens for the user. Privileged roles carry no client list; their scope is
// unrestricted by role alone.
func (s *userService) ScopeSnapshot(ctx context.Context, userID uuid.UUID) (*models.UserScopeSnapshot, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.UserScopeSnapshot{
		UserID: user.ID,
		Role:   user.Role,
		Active: user.Active,
	}

	if models.IsPrivilegedRole(user.Role) {
		return snapshot, nil
	}

	assignments, err := s.userRepo.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if !a.Active {
			continue
		}
		snapshot.ClientIDs = append(snapshot.ClientIDs, a.ClientID)
		if a.IsPrimary {
			snapshot.PrimaryClientID = &a.ClientID
		}
	}
	return snapshot, nil
}

// Ensure userService implements UserService at compile time.
var _ UserService = (*userService)(nil)
