package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/kpi"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// DefaultHoldAgingThresholdDays is the fallback aging threshold when a
// client has none configured.
const DefaultHoldAgingThresholdDays = 7

// HoldAgingService flags holds that have been in effect longer than their
// client's aging threshold.
type HoldAgingService interface {
	// SweepClient marks the client's over-threshold holds as aged and
	// returns how many were newly marked.
	SweepClient(ctx context.Context, client *models.Client) (int, error)

	// RunScheduler starts a background goroutine sweeping every client on
	// the given interval. It runs immediately on startup, then repeats.
	// Cancel the context to stop the scheduler.
	RunScheduler(ctx context.Context, interval time.Duration)
}

type holdAgingService struct {
	holdRepo             repositories.HoldRepository
	clientRepo           repositories.ClientRepository
	defaultThresholdDays int
	logger               *zap.Logger
}

// NewHoldAgingService creates a new hold aging service. defaultThresholdDays
// applies to clients without a configured threshold.
func NewHoldAgingService(
	holdRepo repositories.HoldRepository,
	clientRepo repositories.ClientRepository,
	defaultThresholdDays int,
	logger *zap.Logger,
) HoldAgingService {
	if defaultThresholdDays <= 0 {
		defaultThresholdDays = DefaultHoldAgingThresholdDays
	}
	return &holdAgingService{
		holdRepo:             holdRepo,
		clientRepo:           clientRepo,
		defaultThresholdDays: defaultThresholdDays,
		logger:               logger.Named("hold-aging"),
	}
}

var _ HoldAgingService = (*holdAgingService)(nil)

// SweepClient marks the client's over-threshold holds as aged. Marking is
// idempotent; a hold already flagged is skipped.
func (s *holdAgingService) SweepClient(ctx context.Context, client *models.Client) (int, error) {
	threshold := client.HoldAgingThresholdDays
	if threshold <= 0 {
		threshold = s.defaultThresholdDays
	}

	holds, err := s.holdRepo.ListActive(ctx, client.ID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	marked := 0
	for _, hold := range holds {
		if hold.Aged || !kpi.IsAged(hold.DaysOnHold(now), float64(threshold)) {
			continue
		}
		if err := s.holdRepo.MarkAged(ctx, hold.ID); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// RunScheduler starts a background loop sweeping every client's holds.
func (s *holdAgingService) RunScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("Hold aging scheduler started",
			zap.Duration("interval", interval),
			zap.Int("default_threshold_days", s.defaultThresholdDays))

		// Run immediately on startup, then at each interval
		s.sweepAll(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Hold aging scheduler stopped")
				return
			case <-ticker.C:
				s.sweepAll(ctx)
			}
		}
	}()
}

// sweepAll sweeps every client under a system scope; the scheduler is a
// system actor and sees all clients.
func (s *holdAgingService) sweepAll(ctx context.Context) {
	sysCtx := access.SetScope(ctx, access.SystemScope())

	clients, err := s.clientRepo.List(sysCtx)
	if err != nil {
		s.logger.Error("Hold aging sweep: failed to list clients", zap.Error(err))
		return
	}

	for _, client := range clients {
		marked, err := s.SweepClient(sysCtx, client)
		if err != nil {
			s.logger.Error("Hold aging sweep failed for client",
				zap.String("client_id", client.ID.String()),
				zap.Error(err))
			continue
		}
		if marked > 0 {
			s.logger.Info("Marked aged holds",
				zap.String("client_id", client.ID.String()),
				zap.Int("marked", marked))
		}
	}
}
