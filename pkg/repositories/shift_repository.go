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

// ShiftRepository defines the interface for shift data access.
type ShiftRepository interface {
	Create(ctx context.Context, shift *models.Shift) error
	Get(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Shift, error)
	Update(ctx context.Context, shift *models.Shift) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// shiftRepository implements ShiftRepository using PostgreSQL.
type shiftRepository struct {
	db *database.DB
}

// NewShiftRepository creates a new shift repository.
func NewShiftRepository(db *database.DB) ShiftRepository {
	return &shiftRepository{db: db}
}

func (r *shiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(shift.ClientID); err != nil {
		return err
	}

	if shift.ID == uuid.Nil {
		shift.ID = uuid.New()
	}

	now := time.Now()
	shift.CreatedAt = now
	shift.UpdatedAt = now

	query := `
		INSERT INTO engine_shifts (id, client_id, name, start_time, end_time, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		shift.ID,
		shift.ClientID,
		shift.Name,
		shift.StartTime,
		shift.EndTime,
		shift.Active,
		shift.CreatedAt,
		shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shift: %w", err)
	}

	return nil
}

// Get retrieves a shift by ID. The row's client is checked against the
// caller's scope after the fetch; out-of-scope rows are denied, not hidden.
func (r *shiftRepository) Get(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, name, start_time, end_time, active, created_at, updated_at
		FROM engine_shifts
		WHERE id = $1`

	var shift models.Shift
	err = r.db.QueryRow(ctx, query, id).Scan(
		&shift.ID,
		&shift.ClientID,
		&shift.Name,
		&shift.StartTime,
		&shift.EndTime,
		&shift.Active,
		&shift.CreatedAt,
		&shift.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}

	if err := scope.RequireClient(shift.ClientID); err != nil {
		return nil, err
	}

	return &shift, nil
}

func (r *shiftRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Shift, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireClient(clientID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, name, start_time, end_time, active, created_at, updated_at
		FROM engine_shifts
		WHERE client_id = $1
		ORDER BY active DESC, start_time`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []*models.Shift
	for rows.Next() {
		var shift models.Shift
		err := rows.Scan(
			&shift.ID,
			&shift.ClientID,
			&shift.Name,
			&shift.StartTime,
			&shift.EndTime,
			&shift.Active,
			&shift.CreatedAt,
			&shift.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, &shift)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}

	return shifts, nil
}

func (r *shiftRepository) Update(ctx context.Context, shift *models.Shift) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(shift.ClientID); err != nil {
		return err
	}

	shift.UpdatedAt = time.Now()

	query := `
		UPDATE engine_shifts
		SET name = $3, start_time = $4, end_time = $5, active = $6, updated_at = $7
		WHERE id = $1 AND client_id = $2`

	result, err := r.db.Exec(ctx, query,
		shift.ID,
		shift.ClientID,
		shift.Name,
		shift.StartTime,
		shift.EndTime,
		shift.Active,
		shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update shift: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *shiftRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	// Fetch first so out-of-scope rows fail with a denial, not a silent miss
	shift, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	query := `UPDATE engine_shifts SET active = FALSE, updated_at = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, shift.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate shift: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure shiftRepository implements ShiftRepository at compile time.
var _ ShiftRepository = (*shiftRepository)(nil)
