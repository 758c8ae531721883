package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// HoldService drives the work order hold workflow. Every status change goes
// through the transition table; a stale read loses with ErrConflict rather
// than overwriting a newer decision.
type HoldService interface {
	// Request opens a hold on a work order, pending approval.
	Request(ctx context.Context, hold *models.HoldEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.HoldEntry, error)
	List(ctx context.Context, filters models.HoldFilters) ([]*models.HoldEntry, int, error)

	// Approve puts a requested hold into effect. Requires a leader or above.
	Approve(ctx context.Context, holdID, approverID uuid.UUID) error
	// Reject cancels a requested hold before it takes effect. Requires a
	// leader or above.
	Reject(ctx context.Context, holdID, approverID uuid.UUID) error
	// RequestResume asks to release a hold, pending approval.
	RequestResume(ctx context.Context, holdID uuid.UUID) error
	// ApproveResume releases the hold. Requires a leader or above.
	ApproveResume(ctx context.Context, holdID, approverID uuid.UUID) error
	// RejectResume denies the resume request and keeps the hold in effect.
	// Requires a leader or above.
	RejectResume(ctx context.Context, holdID, approverID uuid.UUID) error
	// Cancel withdraws a hold that is pending approval or in effect.
	Cancel(ctx context.Context, holdID uuid.UUID) error
}

// holdService implements HoldService.
type holdService struct {
	holdRepo      repositories.HoldRepository
	workOrderRepo repositories.WorkOrderRepository
	logger        *zap.Logger
}

// NewHoldService creates a new hold service with dependencies.
func NewHoldService(holdRepo repositories.HoldRepository, workOrderRepo repositories.WorkOrderRepository, logger *zap.Logger) HoldService {
	return &holdService{
		holdRepo:      holdRepo,
		workOrderRepo: workOrderRepo,
		logger:        logger,
	}
}

// Request opens a hold on a work order.
func (s *holdService) Request(ctx context.Context, hold *models.HoldEntry) error {
	if hold.WorkOrderID == uuid.Nil {
		return fmt.Errorf("%w: work_order_id is required", apperrors.ErrValidation)
	}
	if hold.Reason == "" {
		return fmt.Errorf("%w: reason is required", apperrors.ErrValidation)
	}

	// The hold is pinned to the work order's client; fetching the order also
	// verifies it is in the caller's scope.
	order, err := s.workOrderRepo.Get(ctx, hold.WorkOrderID)
	if err != nil {
		return err
	}
	hold.ClientID = order.ClientID

	if err := s.holdRepo.Create(ctx, hold); err != nil {
		return err
	}

	s.logger.Info("Hold requested",
		zap.String("hold_id", hold.ID.String()),
		zap.String("work_order_id", hold.WorkOrderID.String()),
		zap.String("client_id", hold.ClientID.String()))
	return nil
}

// Get retrieves a hold by ID.
func (s *holdService) Get(ctx context.Context, id uuid.UUID) (*models.HoldEntry, error) {
	return s.holdRepo.Get(ctx, id)
}

// List retrieves holds matching the filters within the caller's scope.
func (s *holdService) List(ctx context.Context, filters models.HoldFilters) ([]*models.HoldEntry, int, error) {
	return s.holdRepo.List(ctx, filters)
}

// Approve puts a requested hold into effect.
func (s *holdService) Approve(ctx context.Context, holdID, approverID uuid.UUID) error {
	if err := requireApprover(ctx); err != nil {
		return err
	}
	return s.transition(ctx, holdID, models.HoldStatusOnHold, func(hold *models.HoldEntry) {
		now := time.Now()
		hold.ApprovedBy = &approverID
		hold.HeldAt = &now
	})
}

// Reject cancels a requested hold before it takes effect.
func (s *holdService) Reject(ctx context.Context, holdID, approverID uuid.UUID) error {
	if err := requireApprover(ctx); err != nil {
		return err
	}
	hold, err := s.holdRepo.Get(ctx, holdID)
	if err != nil {
		return err
	}
	if hold.Status != models.HoldStatusPendingApproval {
		return fmt.Errorf("%w: only a pending hold can be rejected, status is %s",
			apperrors.ErrInvalidTransition, hold.Status)
	}
	hold.Status = models.HoldStatusCancelled
	hold.ApprovedBy = &approverID
	return s.holdRepo.Transition(ctx, hold, models.HoldStatusPendingApproval)
}

// RequestResume asks to release a hold.
func (s *holdService) RequestResume(ctx context.Context, holdID uuid.UUID) error {
	return s.transition(ctx, holdID, models.HoldStatusPendingResume, nil)
}

// ApproveResume releases the hold.
func (s *holdService) ApproveResume(ctx context.Context, holdID, approverID uuid.UUID) error {
	if err := requireApprover(ctx); err != nil {
		return err
	}
	return s.transition(ctx, holdID, models.HoldStatusResumed, func(hold *models.HoldEntry) {
		now := time.Now()
		hold.ApprovedBy = &approverID
		hold.ResumedAt = &now
	})
}

// RejectResume denies the resume request; the hold stays in effect and its
// original held timestamp keeps accruing age.
func (s *holdService) RejectResume(ctx context.Context, holdID, approverID uuid.UUID) error {
	if err := requireApprover(ctx); err != nil {
		return err
	}
	return s.transition(ctx, holdID, models.HoldStatusOnHold, func(hold *models.HoldEntry) {
		hold.ApprovedBy = &approverID
	})
}

// Cancel withdraws a hold that is pending approval or in effect.
func (s *holdService) Cancel(ctx context.Context, holdID uuid.UUID) error {
	return s.transition(ctx, holdID, models.HoldStatusCancelled, nil)
}

// transition moves a hold to the target status through the transition table,
// applying mutate to the fetched hold before writing.
func (s *holdService) transition(ctx context.Context, holdID uuid.UUID, target string, mutate func(*models.HoldEntry)) error {
	hold, err := s.holdRepo.Get(ctx, holdID)
	if err != nil {
		return err
	}

	if !models.CanTransitionHold(hold.Status, target) {
		return fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidTransition, hold.Status, target)
	}

	from := hold.Status
	hold.Status = target
	if mutate != nil {
		mutate(hold)
	}

	if err := s.holdRepo.Transition(ctx, hold, from); err != nil {
		return err
	}

	s.logger.Info("Hold transitioned",
		zap.String("hold_id", hold.ID.String()),
		zap.String("from", from),
		zap.String("to", target))
	return nil
}

// requireApprover denies hold decisions to operators; approvals need a
// leader or above.
func requireApprover(ctx context.Context) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if scope.Role == models.RoleOperator {
		return fmt.Errorf("%w: hold decisions require a leader role or above", apperrors.ErrClientAccessDenied)
	}
	return nil
}

// Ensure holdService implements HoldService at compile time.
var _ HoldService = (*holdService)(nil)
