package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/database"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

// HoldRepository defines the interface for work order hold data access.
// Holds are never deleted; terminal holds stay queryable for aging history.
type HoldRepository interface {
	Create(ctx context.Context, hold *models.HoldEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.HoldEntry, error)
	List(ctx context.Context, filters models.HoldFilters) ([]*models.HoldEntry, int, error)

	// Transition writes the hold's status, approver and timestamps, guarded
	// by the status the caller read. Returns ErrConflict when the hold moved
	// to another status in between.
	Transition(ctx context.Context, hold *models.HoldEntry, fromStatus string) error

	// ListActive returns approved holds still physically in effect, optionally
	// narrowed to the given clients. Used by the aging sweeper and KPI reads.
	ListActive(ctx context.Context, clientIDs ...uuid.UUID) ([]*models.HoldEntry, error)

	// MarkAged flags a hold as aged. Idempotent; marking an already aged or
	// missing hold is a no-op.
	MarkAged(ctx context.Context, id uuid.UUID) error
}

// holdRepository implements HoldRepository using PostgreSQL.
type holdRepository struct {
	db *database.DB
}

// NewHoldRepository creates a new hold repository.
func NewHoldRepository(db *database.DB) HoldRepository {
	return &holdRepository{db: db}
}

func (r *holdRepository) Create(ctx context.Context, hold *models.HoldEntry) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(hold.ClientID); err != nil {
		return err
	}

	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	if hold.Status == "" {
		hold.Status = models.HoldStatusPendingApproval
	}

	now := time.Now()
	hold.CreatedAt = now
	hold.UpdatedAt = now

	query := `
		INSERT INTO engine_holds (id, client_id, work_order_id, status, reason,
			requested_by, approved_by, held_at, resumed_at, aged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		hold.ID,
		hold.ClientID,
		hold.WorkOrderID,
		hold.Status,
		hold.Reason,
		hold.RequestedBy,
		hold.ApprovedBy,
		hold.HeldAt,
		hold.ResumedAt,
		hold.Aged,
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}

	return nil
}

func (r *holdRepository) Get(ctx context.Context, id uuid.UUID) (*models.HoldEntry, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, work_order_id, status, reason, requested_by,
		       approved_by, held_at, resumed_at, aged, created_at, updated_at
		FROM engine_holds
		WHERE id = $1`

	hold, err := scanHoldRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	if err := scope.RequireClient(hold.ClientID); err != nil {
		return nil, err
	}

	return hold, nil
}

func (r *holdRepository) List(ctx context.Context, filters models.HoldFilters) ([]*models.HoldEntry, int, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePageParams(filters.Limit, filters.Offset)

	conditions := []string{}
	args := []any{}
	argIdx := 1

	clientPred, clientArgs := clientListFilter(scope, filters.ClientIDs, argIdx)
	conditions = append(conditions, clientPred)
	args = append(args, clientArgs...)
	argIdx += len(clientArgs)

	if filters.WorkOrderID != nil {
		conditions = append(conditions, fmt.Sprintf("work_order_id = $%d", argIdx))
		args = append(args, *filters.WorkOrderID)
		argIdx++
	}
	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.Aged != nil {
		conditions = append(conditions, fmt.Sprintf("aged = $%d", argIdx))
		args = append(args, *filters.Aged)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_holds WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count holds: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, client_id, work_order_id, status, reason, requested_by,
		       approved_by, held_at, resumed_at, aged, created_at, updated_at
		FROM engine_holds
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list holds: %w", err)
	}
	defer rows.Close()

	var holds []*models.HoldEntry
	for rows.Next() {
		hold, err := scanHoldRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan hold: %w", err)
		}
		holds = append(holds, hold)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating holds: %w", err)
	}

	return holds, total, nil
}

func (r *holdRepository) Transition(ctx context.Context, hold *models.HoldEntry, fromStatus string) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(hold.ClientID); err != nil {
		return err
	}

	hold.UpdatedAt = time.Now()

	query := `
		UPDATE engine_holds
		SET status = $4, approved_by = $5, held_at = $6, resumed_at = $7, updated_at = $8
		WHERE id = $1 AND client_id = $2 AND status = $3`

	result, err := r.db.Exec(ctx, query,
		hold.ID,
		hold.ClientID,
		fromStatus,
		hold.Status,
		hold.ApprovedBy,
		hold.HeldAt,
		hold.ResumedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to transition hold: %w", err)
	}

	// Holds are never deleted, so zero rows means the status changed since
	// the caller read it.
	if result.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

func (r *holdRepository) ListActive(ctx context.Context, clientIDs ...uuid.UUID) ([]*models.HoldEntry, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	conditions := []string{}
	args := []any{}
	argIdx := 1

	clientPred, clientArgs := clientListFilter(scope, clientIDs, argIdx)
	conditions = append(conditions, clientPred)
	args = append(args, clientArgs...)
	argIdx += len(clientArgs)

	conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argIdx))
	args = append(args, []string{models.HoldStatusOnHold, models.HoldStatusPendingResume})
	conditions = append(conditions, "held_at IS NOT NULL")

	query := fmt.Sprintf(`
		SELECT id, client_id, work_order_id, status, reason, requested_by,
		       approved_by, held_at, resumed_at, aged, created_at, updated_at
		FROM engine_holds
		WHERE %s
		ORDER BY held_at`, strings.Join(conditions, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active holds: %w", err)
	}
	defer rows.Close()

	var holds []*models.HoldEntry
	for rows.Next() {
		hold, err := scanHoldRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		holds = append(holds, hold)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active holds: %w", err)
	}

	return holds, nil
}

func (r *holdRepository) MarkAged(ctx context.Context, id uuid.UUID) error {
	if _, err := access.GetScope(ctx); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		UPDATE engine_holds
		SET aged = TRUE, updated_at = $2
		WHERE id = $1 AND aged = FALSE`,
		id, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark hold aged: %w", err)
	}

	return nil
}

// scanHoldRow scans a hold from a row. Works for both QueryRow results and
// rows from Query since pgx.Rows satisfies pgx.Row.
func scanHoldRow(row pgx.Row) (*models.HoldEntry, error) {
	var hold models.HoldEntry
	err := row.Scan(
		&hold.ID,
		&hold.ClientID,
		&hold.WorkOrderID,
		&hold.Status,
		&hold.Reason,
		&hold.RequestedBy,
		&hold.ApprovedBy,
		&hold.HeldAt,
		&hold.ResumedAt,
		&hold.Aged,
		&hold.CreatedAt,
		&hold.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// Ensure holdRepository implements HoldRepository at compile time.
var _ HoldRepository = (*holdRepository)(nil)
