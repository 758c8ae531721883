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

// AttendanceRepository defines the interface for attendance entry data
// access.
type AttendanceRepository interface {
	Create(ctx context.Context, entry *models.AttendanceEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.AttendanceEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.AttendanceEntry, int, error)
	Update(ctx context.Context, entry *models.AttendanceEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// attendanceRepository implements AttendanceRepository using PostgreSQL.
type attendanceRepository struct {
	db *database.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *database.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(ctx context.Context, entry *models.AttendanceEntry) error {
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
		INSERT INTO engine_attendance_entries (id, client_id, employee_ref, entry_date,
			scheduled_hours, absence_hours, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.EmployeeRef,
		entry.EntryDate,
		entry.ScheduledHours,
		entry.AbsenceHours,
		entry.CreatedBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attendance entry: %w", err)
	}

	return nil
}

func (r *attendanceRepository) Get(ctx context.Context, id uuid.UUID) (*models.AttendanceEntry, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, employee_ref, entry_date, scheduled_hours, absence_hours,
		       created_by, created_at, updated_at
		FROM engine_attendance_entries
		WHERE id = $1`

	var entry models.AttendanceEntry
	err = r.db.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.ClientID,
		&entry.EmployeeRef,
		&entry.EntryDate,
		&entry.ScheduledHours,
		&entry.AbsenceHours,
		&entry.CreatedBy,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attendance entry: %w", err)
	}

	if err := scope.RequireClient(entry.ClientID); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *attendanceRepository) List(ctx context.Context, filters models.EntryFilters) ([]*models.AttendanceEntry, int, error) {
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

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_attendance_entries WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance entries: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, client_id, employee_ref, entry_date, scheduled_hours, absence_hours,
		       created_by, created_at, updated_at
		FROM engine_attendance_entries
		WHERE %s
		ORDER BY entry_date DESC, employee_ref
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attendance entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AttendanceEntry
	for rows.Next() {
		var entry models.AttendanceEntry
		err := rows.Scan(
			&entry.ID,
			&entry.ClientID,
			&entry.EmployeeRef,
			&entry.EntryDate,
			&entry.ScheduledHours,
			&entry.AbsenceHours,
			&entry.CreatedBy,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating attendance entries: %w", err)
	}

	return entries, total, nil
}

func (r *attendanceRepository) Update(ctx context.Context, entry *models.AttendanceEntry) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(entry.ClientID); err != nil {
		return err
	}

	entry.UpdatedAt = time.Now()

	query := `
		UPDATE engine_attendance_entries
		SET employee_ref = $3, entry_date = $4, scheduled_hours = $5, absence_hours = $6,
		    updated_at = $7
		WHERE id = $1 AND client_id = $2`

	result, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.EmployeeRef,
		entry.EntryDate,
		entry.ScheduledHours,
		entry.AbsenceHours,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *attendanceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch first so out-of-scope rows fail with a denial, not a silent miss
	entry, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, `DELETE FROM engine_attendance_entries WHERE id = $1`, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to delete attendance entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure attendanceRepository implements AttendanceRepository at compile time.
var _ AttendanceRepository = (*attendanceRepository)(nil)
