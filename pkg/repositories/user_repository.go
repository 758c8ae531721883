package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/database"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

// UserRepository defines the interface for user and client assignment data
// access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// UpdateRole atomically updates a user's role, returning ErrLastAdmin if
	// attempting to demote the last active admin.
	UpdateRole(ctx context.Context, userID uuid.UUID, newRole string) error
	// Deactivate atomically deactivates a user, returning ErrLastAdmin if
	// attempting to deactivate the last active admin.
	Deactivate(ctx context.Context, userID uuid.UUID) error

	ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.ClientAssignment, error)
	ActiveClientIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Assign(ctx context.Context, assignment *models.ClientAssignment) error
	// Unassign deactivates an assignment, returning ErrPrimaryAssignment if
	// it is the primary while other active assignments remain.
	Unassign(ctx context.Context, userID, clientID uuid.UUID) error
	// SetPrimary atomically moves the primary flag to the given active
	// assignment.
	SetPrimary(ctx context.Context, userID, clientID uuid.UUID) error
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user or updates if it already exists (idempotent).
// Uses ON CONFLICT for safe retry behavior during provisioning.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if _, err := access.GetScope(ctx); err != nil {
		return err
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO engine_users (id, email, name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = COALESCE(NULLIF(EXCLUDED.name, ''), engine_users.name),
		    role = EXCLUDED.role,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID.
func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if _, err := access.GetScope(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, email, name, role, active, created_at, updated_at
		FROM engine_users
		WHERE id = $1`

	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if _, err := access.GetScope(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, email, name, role, active, created_at, updated_at
		FROM engine_users
		WHERE email = $1`

	var user models.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// List retrieves all users, active first.
func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	if _, err := access.GetScope(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, email, name, role, active, created_at, updated_at
		FROM engine_users
		ORDER BY active DESC, email`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.Active,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateRole atomically updates a user's role, returning ErrLastAdmin if
// attempting to demote the last active admin.
func (r *userRepository) UpdateRole(ctx context.Context, userID uuid.UUID, newRole string) error {
	if _, err := access.GetScope(ctx); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var currentRole string
	err = tx.QueryRow(ctx, `SELECT role FROM engine_users WHERE id = $1`, userID).Scan(&currentRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.ErrNotFound
			return err
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	// If demoting from admin, check they are not the last one
	if currentRole == models.RoleAdmin && newRole != models.RoleAdmin {
		var adminCount int
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM engine_users WHERE role = 'admin' AND active = TRUE`).Scan(&adminCount)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if adminCount <= 1 {
			err = apperrors.ErrLastAdmin
			return err
		}
	}

	result, err := tx.Exec(ctx,
		`UPDATE engine_users SET role = $2, updated_at = $3 WHERE id = $1`,
		userID, newRole, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		err = apperrors.ErrNotFound
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Deactivate atomically deactivates a user, returning ErrLastAdmin if
// attempting to deactivate the last active admin.
func (r *userRepository) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if _, err := access.GetScope(ctx); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var role string
	var active bool
	err = tx.QueryRow(ctx, `SELECT role, active FROM engine_users WHERE id = $1`, userID).Scan(&role, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.ErrNotFound
			return err
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if role == models.RoleAdmin && active {
		var adminCount int
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM engine_users WHERE role = 'admin' AND active = TRUE`).Scan(&adminCount)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if adminCount <= 1 {
			err = apperrors.ErrLastAdmin
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE engine_users SET active = FALSE, updated_at = $2 WHERE id = $1`,
		userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListAssignments retrieves all of a user's client assignments, including
// inactive ones.
func (r *userRepository) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.ClientAssignment, error) {
	if _, err := access.GetScope(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, client_id, is_primary, active, created_at, updated_at
		FROM engine_client_assignments
		WHERE user_id = $1
		ORDER BY is_primary DESC, created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.ClientAssignment
	for rows.Next() {
		var a models.ClientAssignment
		err := rows.Scan(
			&a.UserID,
			&a.ClientID,
			&a.IsPrimary,
			&a.Active,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

// ActiveClientIDs returns the client IDs of a user's active assignments,
// primary first. This is what opsline-central embeds in the user's token.
func (r *userRepository) ActiveClientIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := access.GetScope(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT client_id
		FROM engine_client_assignments
		WHERE user_id = $1 AND active = TRUE
		ORDER BY is_primary DESC, created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active client IDs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating client IDs: %w", err)
	}

	return ids, nil
}

// Assign creates or reactivates a client assignment. The first active
// assignment for a user becomes primary automatically.
func (r *userRepository) Assign(ctx context.Context, assignment *models.ClientAssignment) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(assignment.ClientID); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var activeCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM engine_client_assignments WHERE user_id = $1 AND active = TRUE`,
		assignment.UserID).Scan(&activeCount)
	if err != nil {
		return fmt.Errorf("failed to count assignments: %w", err)
	}

	now := time.Now()
	assignment.Active = true
	assignment.IsPrimary = assignment.IsPrimary || activeCount == 0
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	if assignment.IsPrimary {
		// Only one primary per user
		_, err = tx.Exec(ctx,
			`UPDATE engine_client_assignments SET is_primary = FALSE, updated_at = $2
			 WHERE user_id = $1 AND is_primary = TRUE`,
			assignment.UserID, now)
		if err != nil {
			return fmt.Errorf("failed to clear primary assignment: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO engine_client_assignments (user_id, client_id, is_primary, active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		ON CONFLICT (user_id, client_id) DO UPDATE
		SET is_primary = EXCLUDED.is_primary,
		    active = TRUE,
		    updated_at = EXCLUDED.updated_at`,
		assignment.UserID, assignment.ClientID, assignment.IsPrimary, now, now)
	if err != nil {
		return fmt.Errorf("failed to assign client: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Unassign deactivates an assignment, returning ErrPrimaryAssignment if it
// is the primary while other active assignments remain.
func (r *userRepository) Unassign(ctx context.Context, userID, clientID uuid.UUID) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(clientID); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var isPrimary bool
	err = tx.QueryRow(ctx,
		`SELECT is_primary FROM engine_client_assignments
		 WHERE user_id = $1 AND client_id = $2 AND active = TRUE`,
		userID, clientID).Scan(&isPrimary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.ErrNotFound
			return err
		}
		return fmt.Errorf("failed to get assignment: %w", err)
	}

	if isPrimary {
		var otherActive int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM engine_client_assignments
			 WHERE user_id = $1 AND client_id <> $2 AND active = TRUE`,
			userID, clientID).Scan(&otherActive)
		if err != nil {
			return fmt.Errorf("failed to count assignments: %w", err)
		}
		if otherActive > 0 {
			err = apperrors.ErrPrimaryAssignment
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE engine_client_assignments
		 SET active = FALSE, is_primary = FALSE, updated_at = $3
		 WHERE user_id = $1 AND client_id = $2`,
		userID, clientID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to unassign client: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SetPrimary atomically moves the primary flag to the given active
// assignment.
func (r *userRepository) SetPrimary(ctx context.Context, userID, clientID uuid.UUID) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(clientID); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE engine_client_assignments SET is_primary = FALSE, updated_at = $2
		 WHERE user_id = $1 AND is_primary = TRUE`,
		userID, now)
	if err != nil {
		return fmt.Errorf("failed to clear primary assignment: %w", err)
	}

	result, err := tx.Exec(ctx,
		`UPDATE engine_client_assignments SET is_primary = TRUE, updated_at = $3
		 WHERE user_id = $1 AND client_id = $2 AND active = TRUE`,
		userID, clientID, now)
	if err != nil {
		return fmt.Errorf("failed to set primary assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		err = apperrors.ErrNotFound
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
