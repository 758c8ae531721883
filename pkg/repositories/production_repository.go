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

// ProductionRepository defines the interface for production entry data
// access.
type ProductionRepository interface {
	Create(ctx context.Context, entry *models.ProductionEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.ProductionEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.ProductionEntry, int, error)
	Update(ctx context.Context, entry *models.ProductionEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	// RecentCycleTimes returns up to limit explicitly recorded (non-inferred)
	// ideal cycle times for a client's product, most recent entries first.
	RecentCycleTimes(ctx context.Context, clientID uuid.UUID, productCode string, limit int) ([]float64, error)
}

// productionRepository implements ProductionRepository using PostgreSQL.
type productionRepository struct {
	db *database.DB
}

// NewProductionRepository creates a new production repository.
func NewProductionRepository(db *database.DB) ProductionRepository {
	return &productionRepository{db: db}
}

func (r *productionRepository) Create(ctx context.Context, entry *models.ProductionEntry) error {
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
		INSERT INTO engine_production_entries (id, client_id, shift_id, work_order_id,
			product_code, entry_date, units_produced, employees_assigned, run_time_hours,
			ideal_cycle_time, cycle_time_inferred, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.ShiftID,
		entry.WorkOrderID,
		entry.ProductCode,
		entry.EntryDate,
		entry.UnitsProduced,
		entry.EmployeesAssigned,
		entry.RunTimeHours,
		entry.IdealCycleTime,
		entry.CycleTimeInferred,
		entry.CreatedBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create production entry: %w", err)
	}

	return nil
}

func (r *productionRepository) Get(ctx context.Context, id uuid.UUID) (*models.ProductionEntry, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, shift_id, work_order_id, product_code, entry_date,
		       units_produced, employees_assigned, run_time_hours, ideal_cycle_time,
		       cycle_time_inferred, created_by, created_at, updated_at
		FROM engine_production_entries
		WHERE id = $1`

	entry, err := scanProductionRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get production entry: %w", err)
	}

	if err := scope.RequireClient(entry.ClientID); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *productionRepository) List(ctx context.Context, filters models.EntryFilters) ([]*models.ProductionEntry, int, error) {
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
	if filters.ProductCode != "" {
		conditions = append(conditions, fmt.Sprintf("product_code = $%d", argIdx))
		args = append(args, filters.ProductCode)
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

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_production_entries WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count production entries: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, client_id, shift_id, work_order_id, product_code, entry_date,
		       units_produced, employees_assigned, run_time_hours, ideal_cycle_time,
		       cycle_time_inferred, created_by, created_at, updated_at
		FROM engine_production_entries
		WHERE %s
		ORDER BY entry_date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list production entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProductionEntry
	for rows.Next() {
		entry, err := scanProductionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan production entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating production entries: %w", err)
	}

	return entries, total, nil
}

func (r *productionRepository) Update(ctx context.Context, entry *models.ProductionEntry) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(entry.ClientID); err != nil {
		return err
	}

	entry.UpdatedAt = time.Now()

	query := `
		UPDATE engine_production_entries
		SET shift_id = $3, work_order_id = $4, product_code = $5, entry_date = $6,
		    units_produced = $7, employees_assigned = $8, run_time_hours = $9,
		    ideal_cycle_time = $10, cycle_time_inferred = $11, updated_at = $12
		WHERE id = $1 AND client_id = $2`

	result, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.ShiftID,
		entry.WorkOrderID,
		entry.ProductCode,
		entry.EntryDate,
		entry.UnitsProduced,
		entry.EmployeesAssigned,
		entry.RunTimeHours,
		entry.IdealCycleTime,
		entry.CycleTimeInferred,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update production entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *productionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch first so out-of-scope rows fail with a denial, not a silent miss
	entry, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, `DELETE FROM engine_production_entries WHERE id = $1`, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to delete production entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// RecentCycleTimes returns up to limit explicitly recorded (non-inferred)
// ideal cycle times for a client's product, most recent entries first. The
// ordering is deterministic so inference over the same history always
// produces the same estimate.
func (r *productionRepository) RecentCycleTimes(ctx context.Context, clientID uuid.UUID, productCode string, limit int) ([]float64, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireClient(clientID); err != nil {
		return nil, err
	}

	query := `
		SELECT ideal_cycle_time
		FROM engine_production_entries
		WHERE client_id = $1 AND product_code = $2
		  AND ideal_cycle_time IS NOT NULL AND cycle_time_inferred = FALSE
		ORDER BY entry_date DESC, created_at DESC, id DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, clientID, productCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle times: %w", err)
	}
	defer rows.Close()

	var cycleTimes []float64
	for rows.Next() {
		var ct float64
		if err := rows.Scan(&ct); err != nil {
			return nil, fmt.Errorf("failed to scan cycle time: %w", err)
		}
		cycleTimes = append(cycleTimes, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle times: %w", err)
	}

	return cycleTimes, nil
}

func scanProductionRow(row pgx.Row) (*models.ProductionEntry, error) {
	entry := &models.ProductionEntry{}
	err := row.Scan(
		&entry.ID, &entry.ClientID, &entry.ShiftID, &entry.WorkOrderID,
		&entry.ProductCode, &entry.EntryDate, &entry.UnitsProduced,
		&entry.EmployeesAssigned, &entry.RunTimeHours, &entry.IdealCycleTime,
		&entry.CycleTimeInferred, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// clientListFilter builds the client visibility predicate for list queries.
// Requested IDs are intersected with the caller's scope; asking for clients
// outside the scope narrows to nothing rather than erroring, so list
// endpoints degrade to empty results.
func clientListFilter(scope *access.Scope, requested []uuid.UUID, argIdx int) (string, []any) {
	ids := scope.FilterClientIDs(requested)
	if scope.Unrestricted && len(ids) == 0 {
		return "TRUE", nil
	}
	if len(ids) == 0 {
		return "FALSE", nil
	}
	return fmt.Sprintf("client_id = ANY($%d)", argIdx), []any{ids}
}

// normalizePageParams ensures limit and offset are within reasonable bounds.
func normalizePageParams(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
