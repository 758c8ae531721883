package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// CycleTimeEstimator infers an ideal cycle time for a product when an entry
// arrives without one. Implementations must be deterministic: the same
// history always yields the same estimate.
type CycleTimeEstimator interface {
	// Estimate returns an inferred ideal cycle time in hours per unit.
	// Returns ErrNoCycleTimeHistory when the product has no recorded cycle
	// times to infer from.
	Estimate(ctx context.Context, clientID uuid.UUID, productCode string) (float64, error)
}

// movingAverageEstimator averages the most recent recorded cycle times for
// the product. Inferred values are excluded from the history so estimates
// never compound on earlier estimates.
type movingAverageEstimator struct {
	productionRepo repositories.ProductionRepository
	window         int
}

// NewMovingAverageEstimator creates an estimator averaging up to window
// recent recorded cycle times.
func NewMovingAverageEstimator(productionRepo repositories.ProductionRepository, window int) CycleTimeEstimator {
	if window <= 0 {
		window = 10
	}
	return &movingAverageEstimator{
		productionRepo: productionRepo,
		window:         window,
	}
}

// Estimate returns the mean of the most recent recorded cycle times.
func (e *movingAverageEstimator) Estimate(ctx context.Context, clientID uuid.UUID, productCode string) (float64, error) {
	history, err := e.productionRepo.RecentCycleTimes(ctx, clientID, productCode, e.window)
	if err != nil {
		return 0, fmt.Errorf("failed to load cycle time history: %w", err)
	}
	if len(history) == 0 {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrNoCycleTimeHistory, productCode)
	}

	var sum float64
	for _, ct := range history {
		sum += ct
	}
	return sum / float64(len(history)), nil
}

// Ensure movingAverageEstimator implements CycleTimeEstimator at compile time.
var _ CycleTimeEstimator = (*movingAverageEstimator)(nil)
