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

// WorkOrderRepository defines the interface for work order data access.
type WorkOrderRepository interface {
	// Create inserts a work order. Codes are unique per client; a duplicate
	// returns ErrConflict.
	Create(ctx context.Context, order *models.WorkOrder) error
	Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	GetByCode(ctx context.Context, clientID uuid.UUID, code string) (*models.WorkOrder, error)
	List(ctx context.Context, filters models.WorkOrderFilters) ([]*models.WorkOrder, int, error)
	Update(ctx context.Context, order *models.WorkOrder) error

	// MarkDelivered records the delivery time. A second delivery returns
	// ErrConflict.
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error

	// ListDeliveries returns orders delivered within [from, to] for a client,
	// ordered by delivery time. Feeds on-time delivery calculations.
	ListDeliveries(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]*models.WorkOrder, error)
}

// workOrderRepository implements WorkOrderRepository using PostgreSQL.
type workOrderRepository struct {
	db *database.DB
}

// NewWorkOrderRepository creates a new work order repository.
func NewWorkOrderRepository(db *database.DB) WorkOrderRepository {
	return &workOrderRepository{db: db}
}

func (r *workOrderRepository) Create(ctx context.Context, order *models.WorkOrder) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(order.ClientID); err != nil {
		return err
	}

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `
		INSERT INTO engine_work_orders (id, client_id, code, product_code, quantity,
			completed_qty, scrap_qty, due_date, delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (client_id, code) DO NOTHING`

	result, err := r.db.Exec(ctx, query,
		order.ID,
		order.ClientID,
		order.Code,
		order.ProductCode,
		order.Quantity,
		order.CompletedQty,
		order.ScrapQty,
		order.DueDate,
		order.DeliveredAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create work order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

func (r *workOrderRepository) Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, code, product_code, quantity, completed_qty,
		       scrap_qty, due_date, delivered_at, created_at, updated_at
		FROM engine_work_orders
		WHERE id = $1`

	order, err := scanWorkOrderRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}

	if err := scope.RequireClient(order.ClientID); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *workOrderRepository) GetByCode(ctx context.Context, clientID uuid.UUID, code string) (*models.WorkOrder, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireClient(clientID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, code, product_code, quantity, completed_qty,
		       scrap_qty, due_date, delivered_at, created_at, updated_at
		FROM engine_work_orders
		WHERE client_id = $1 AND code = $2`

	order, err := scanWorkOrderRow(r.db.QueryRow(ctx, query, clientID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get work order by code: %w", err)
	}

	return order, nil
}

func (r *workOrderRepository) List(ctx context.Context, filters models.WorkOrderFilters) ([]*models.WorkOrder, int, error) {
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

	if filters.DueFrom != nil {
		conditions = append(conditions, fmt.Sprintf("due_date >= $%d", argIdx))
		args = append(args, *filters.DueFrom)
		argIdx++
	}
	if filters.DueTo != nil {
		conditions = append(conditions, fmt.Sprintf("due_date <= $%d", argIdx))
		args = append(args, *filters.DueTo)
		argIdx++
	}
	if filters.Delivered != nil {
		if *filters.Delivered {
			conditions = append(conditions, "delivered_at IS NOT NULL")
		} else {
			conditions = append(conditions, "delivered_at IS NULL")
		}
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_work_orders WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count work orders: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, client_id, code, product_code, quantity, completed_qty,
		       scrap_qty, due_date, delivered_at, created_at, updated_at
		FROM engine_work_orders
		WHERE %s
		ORDER BY due_date, code
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list work orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrderRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan work order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating work orders: %w", err)
	}

	return orders, total, nil
}

func (r *workOrderRepository) Update(ctx context.Context, order *models.WorkOrder) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(order.ClientID); err != nil {
		return err
	}

	order.UpdatedAt = time.Now()

	query := `
		UPDATE engine_work_orders
		SET code = $3, product_code = $4, quantity = $5, completed_qty = $6,
		    scrap_qty = $7, due_date = $8, updated_at = $9
		WHERE id = $1 AND client_id = $2`

	result, err := r.db.Exec(ctx, query,
		order.ID,
		order.ClientID,
		order.Code,
		order.ProductCode,
		order.Quantity,
		order.CompletedQty,
		order.ScrapQty,
		order.DueDate,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update work order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *workOrderRepository) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	// Fetch first so out-of-scope rows fail with a denial, not a silent miss
	order, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, `
		UPDATE engine_work_orders
		SET delivered_at = $2, updated_at = $3
		WHERE id = $1 AND delivered_at IS NULL`,
		order.ID, deliveredAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark work order delivered: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

func (r *workOrderRepository) ListDeliveries(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]*models.WorkOrder, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireClient(clientID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, client_id, code, product_code, quantity, completed_qty,
		       scrap_qty, due_date, delivered_at, created_at, updated_at
		FROM engine_work_orders
		WHERE client_id = $1 AND delivered_at >= $2 AND delivered_at <= $3
		ORDER BY delivered_at`

	rows, err := r.db.Query(ctx, query, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var orders []*models.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}

	return orders, nil
}

// scanWorkOrderRow scans a work order from a row.
func scanWorkOrderRow(row pgx.Row) (*models.WorkOrder, error) {
	var order models.WorkOrder
	err := row.Scan(
		&order.ID,
		&order.ClientID,
		&order.Code,
		&order.ProductCode,
		&order.Quantity,
		&order.CompletedQty,
		&order.ScrapQty,
		&order.DueDate,
		&order.DeliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Ensure workOrderRepository implements WorkOrderRepository at compile time.
var _ WorkOrderRepository = (*workOrderRepository)(nil)
