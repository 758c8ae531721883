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

// QualityRepository defines the interface for quality entry data access.
type QualityRepository interface {
	Create(ctx context.Context, entry *models.QualityEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.QualityEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.QualityEntry, int, error)
	Update(ctx context.Context, entry *models.QualityEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// qualityRepository implements QualityRepository using PostgreSQL.
type qualityRepository struct {
	db *database.DB
}

// NewQualityRepository creates a new quality repository.
func NewQualityRepository(db *database.DB) QualityRepository {
	return &qualityRepository{db: db}
}

func (r *qualityRepository) Create(ctx context.Context, entry *models.QualityEntry) error {
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
		INSERT INTO engine_quality_entries (id, client_id, entry_date, product_code,
			step_sequence, step_name, units_inspected, units_defective, defect_count,
			opportunities_per_unit, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.EntryDate,
		entry.ProductCode,
		entry.StepSequence,
		entry.StepName,
		entry.UnitsInspected,
		entry.UnitsDefective,
		entry.DefectCount,
		entry.OpportunitiesPerUnit,
		entry.CreatedBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quality entry: %w", err)
	}

	return nil
}

func (r *qualityRepository) Get(ctx context.Context, id uuid.UUID) (*models.QualityEntry, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, entry_date, product_code, step_sequence, step_name,
		       units_inspected, units_defective, defect_count, opportunities_per_unit,
		       created_by, created_at, updated_at
		FROM engine_quality_entries
		WHERE id = $1`

	entry, err := scanQualityRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quality entry: %w", err)
	}

	if err := scope.RequireClient(entry.ClientID); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *qualityRepository) List(ctx context.Context, filters models.EntryFilters) ([]*models.QualityEntry, int, error) {
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

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_quality_entries WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count quality entries: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, client_id, entry_date, product_code, step_sequence, step_name,
		       units_inspected, units_defective, defect_count, opportunities_per_unit,
		       created_by, created_at, updated_at
		FROM engine_quality_entries
		WHERE %s
		ORDER BY entry_date DESC, product_code, step_sequence
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quality entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QualityEntry
	for rows.Next() {
		entry, err := scanQualityRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan quality entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating quality entries: %w", err)
	}

	return entries, total, nil
}

func (r *qualityRepository) Update(ctx context.Context, entry *models.QualityEntry) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(entry.ClientID); err != nil {
		return err
	}

	entry.UpdatedAt = time.Now()

	query := `
		UPDATE engine_quality_entries
		SET entry_date = $3, product_code = $4, step_sequence = $5, step_name = $6,
		    units_inspected = $7, units_defective = $8, defect_count = $9,
		    opportunities_per_unit = $10, updated_at = $11
		WHERE id = $1 AND client_id = $2`

	result, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.EntryDate,
		entry.ProductCode,
		entry.StepSequence,
		entry.StepName,
		entry.UnitsInspected,
		entry.UnitsDefective,
		entry.DefectCount,
		entry.OpportunitiesPerUnit,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update quality entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *qualityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch first so out-of-scope rows fail with a denial, not a silent miss
	entry, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, `DELETE FROM engine_quality_entries WHERE id = $1`, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to delete quality entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanQualityRow(row pgx.Row) (*models.QualityEntry, error) {
	entry := &models.QualityEntry{}
	err := row.Scan(
		&entry.ID, &entry.ClientID, &entry.EntryDate, &entry.ProductCode,
		&entry.StepSequence, &entry.StepName, &entry.UnitsInspected,
		&entry.UnitsDefective, &entry.DefectCount, &entry.OpportunitiesPerUnit,
		&entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Ensure qualityRepository implements QualityRepository at compile time.
var _ QualityRepository = (*qualityRepository)(nil)
