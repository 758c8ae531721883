package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// WorkOrderService defines the interface for work order operations.
type WorkOrderService interface {
	// Create registers a work order. Codes are unique per client; a
	// duplicate returns ErrConflict.
	Create(ctx context.Context, order *models.WorkOrder) error
	Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	GetByCode(ctx context.Context, clientID uuid.UUID, code string) (*models.WorkOrder, error)
	List(ctx context.Context, filters models.WorkOrderFilters) ([]*models.WorkOrder, int, error)
	Update(ctx context.Context, order *models.WorkOrder) error
	// MarkDelivered records the delivery time; a second delivery returns
	// ErrConflict. On-time delivery scoring reads the recorded time, so it
	// is written once and never silently moved.
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error
}

// workOrderService implements WorkOrderService.
type workOrderService struct {
	workOrderRepo repositories.WorkOrderRepository
	logger        *zap.Logger
}

// NewWorkOrderService creates a new work order service with dependencies.
func NewWorkOrderService(workOrderRepo repositories.WorkOrderRepository, logger *zap.Logger) WorkOrderService {
	return &workOrderService{
		workOrderRepo: workOrderRepo,
		logger:        logger,
	}
}

// Create registers a work order.
func (s *workOrderService) Create(ctx context.Context, order *models.WorkOrder) error {
	if err := validateWorkOrder(order); err != nil {
		return err
	}
	if err := s.workOrderRepo.Create(ctx, order); err != nil {
		return err
	}

	s.logger.Info("Created work order",
		zap.String("work_order_id", order.ID.String()),
		zap.String("client_id", order.ClientID.String()),
		zap.String("code", order.Code))
	return nil
}

// Get retrieves a work order by ID.
func (s *workOrderService) Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	return s.workOrderRepo.Get(ctx, id)
}

// GetByCode retrieves a work order by its per-client code.
func (s *workOrderService) GetByCode(ctx context.Context, clientID uuid.UUID, code string) (*models.WorkOrder, error) {
	return s.workOrderRepo.GetByCode(ctx, clientID, code)
}

// List retrieves work orders matching the filters within the caller's scope.
func (s *workOrderService) List(ctx context.Context, filters models.WorkOrderFilters) ([]*models.WorkOrder, int, error) {
	return s.workOrderRepo.List(ctx, filters)
}

// Update updates a work order's details and progress counts.
func (s *workOrderService) Update(ctx context.Context, order *models.WorkOrder) error {
	if err := validateWorkOrder(order); err != nil {
		return err
	}
	return s.workOrderRepo.Update(ctx, order)
}

// MarkDelivered records the delivery time.
func (s *workOrderService) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	if deliveredAt.IsZero() {
		return fmt.Errorf("%w: delivered_at is required", apperrors.ErrValidation)
	}
	if err := s.workOrderRepo.MarkDelivered(ctx, id, deliveredAt); err != nil {
		return err
	}

	s.logger.Info("Marked work order delivered",
		zap.String("work_order_id", id.String()),
		zap.Time("delivered_at", deliveredAt))
	return nil
}

// validateWorkOrder checks work order bounds.
func validateWorkOrder(order *models.WorkOrder) error {
	if order.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", apperrors.ErrValidation)
	}
	if order.Code == "" {
		return fmt.Errorf("%w: code is required", apperrors.ErrValidation)
	}
	if order.ProductCode == "" {
		return fmt.Errorf("%w: product_code is required", apperrors.ErrValidation)
	}
	if order.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", apperrors.ErrValidation)
	}
	if order.CompletedQty < 0 {
		return fmt.Errorf("%w: completed_qty cannot be negative", apperrors.ErrValidation)
	}
	if order.ScrapQty < 0 {
		return fmt.Errorf("%w: scrap_qty cannot be negative", apperrors.ErrValidation)
	}
	if order.DueDate.IsZero() {
		return fmt.Errorf("%w: due_date is required", apperrors.ErrValidation)
	}
	return nil
}

// Ensure workOrderService implements WorkOrderService at compile time.
var _ WorkOrderService = (*workOrderService)(nil)
