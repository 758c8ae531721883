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

// DowntimeRepository defines the interface for downtime entry data access.
type DowntimeRepository interface {
	Create(ctx context.Context, entry *models.DowntimeEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.DowntimeEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.DowntimeEntry, int, error)
	Update(ctx context.Context, entry *models.DowntimeEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// downtimeRepository implements DowntimeRepository using PostgreSQL.
type downtimeRepository struct {
	db *database.DB
}

// NewDowntimeRepository creates a new downtime repository.
func NewDowntimeRepository(db *database.DB) DowntimeRepository {
	return &downtimeRepository{db: db}
}

func (r *downtimeRepository) Create(ctx context.Context, entry *models.DowntimeEntry) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(entry.ClientID); err != nil {
		return err
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `
		INSERT INTO engine_downtime_entries (id, client_id, shift_id, entry_date,
			duration_minutes, reason, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.ShiftID,
		entry.EntryDate,
		entry.DurationMinutes,
		entry.Reason,
		entry.CreatedBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create downtime entry: %w", err)
	}

	return nil
}

func (r *downtimeRepository) Get(ctx context.Context, id uuid.UUID) (*models.DowntimeEntry, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, shift_id, entry_date, duration_minutes, reason,
		       created_by, created_at, updated_at
		FROM engine_downtime_entries
		WHERE id = $1`

	var entry models.DowntimeEntry
	err = r.db.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.ClientID,
		&entry.ShiftID,
		&entry.EntryDate,
		&entry.DurationMinutes,
		&entry.Reason,
		&entry.CreatedBy,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get downtime entry: %w", err)
	}

	if err := scope.RequireClient(entry.ClientID); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *downtimeRepository) List(ctx context.Context, filters models.EntryFilters) ([]*models.DowntimeEntry, int, error) {
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

	if filters.ShiftID != nil {
		conditions = append(conditions, fmt.Sprintf("shift_id = $%d", argIdx))
		args = append(args, *filters.ShiftID)
		argIdx++
	}
	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("entry_date >= $%d", argIdx))
		args = append(args, *filters.From)
		argIdx++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("entry_date <= $%d", argIdx))
		args = append(args, *filters.To)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_downtime_entries WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count downtime entries: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, client_id, shift_id, entry_date, duration_minutes, reason,
		       created_by, created_at, updated_at
		FROM engine_downtime_entries
		WHERE %s
		ORDER BY entry_date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list downtime entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.DowntimeEntry
	for rows.Next() {
		var entry models.DowntimeEntry
		err := rows.Scan(
			&entry.ID,
			&entry.ClientID,
			&entry.ShiftID,
			&entry.EntryDate,
			&entry.DurationMinutes,
			&entry.Reason,
			&entry.CreatedBy,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan downtime entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating downtime entries: %w", err)
	}

	return entries, total, nil
}

func (r *downtimeRepository) Update(ctx context.Context, entry *models.DowntimeEntry) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(entry.ClientID); err != nil {
		return err
	}

	entry.UpdatedAt = time.Now()

	query := `
		UPDATE engine_downtime_entries
		SET shift_id = $3, entry_date = $4, duration_minutes = $5, reason = $6, updated_at = $7
		WHERE id = $1 AND client_id = $2`

	result, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.ShiftID,
		entry.EntryDate,
		entry.DurationMinutes,
		entry.Reason,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update downtime entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *downtimeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch first so out-of-scope rows fail with a denial, not a silent miss
	entry, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, `DELETE FROM engine_downtime_entries WHERE id = $1`, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to delete downtime entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure downtimeRepository implements DowntimeRepository at compile time.
var _ DowntimeRepository = (*downtimeRepository)(nil)
