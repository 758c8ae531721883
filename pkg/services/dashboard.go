package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/models"
)

// DashboardService assembles the full KPI set for a client over a period,
// caching computed summaries in Redis when a client is configured.
type DashboardService interface {
	Summary(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.DashboardSummary, error)
}

// dashboardService implements DashboardService.
type dashboardService struct {
	kpis     KPIService
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService creates a new dashboard service. redisClient may be
// nil, in which case summaries are computed on every request.
func NewDashboardService(kpis KPIService, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) DashboardService {
	return &dashboardService{
		kpis:     kpis,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Summary returns all ten KPIs for the client over the period.
func (s *dashboardService) Summary(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.DashboardSummary, error) {
	// Scope is checked before the cache is consulted; a cached summary must
	// not be served across scopes.
	if err := requireClientScope(ctx, clientID); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	key := dashboardCacheKey(clientID, period)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	summary := &models.DashboardSummary{
		ClientID:    clientID,
		From:        period.From,
		To:          period.To,
		GeneratedAt: time.Now(),
	}

	var err error
	if summary.KPIs.Efficiency, err = s.kpis.Efficiency(ctx, clientID, period); err != nil {
		return nil, err
	}
	if summary.KPIs.Performance, err = s.kpis.Performance(ctx, clientID, period); err != nil {
		return nil, err
	}
	if summary.KPIs.PPM, err = s.kpis.PartsPerMillion(ctx, clientID, period, ""); err != nil {
		return nil, err
	}
	if summary.KPIs.DPMO, err = s.kpis.DefectsPerMillionOpportunities(ctx, clientID, period, ""); err != nil {
		return nil, err
	}
	if summary.KPIs.FPY, err = s.kpis.FirstPassYield(ctx, clientID, period, ""); err != nil {
		return nil, err
	}
	if summary.KPIs.RTY, err = s.kpis.RolledThroughputYield(ctx, clientID, period, ""); err != nil {
		return nil, err
	}
	if summary.KPIs.Availability, err = s.kpis.Availability(ctx, clientID, period); err != nil {
		return nil, err
	}
	if summary.KPIs.Absenteeism, err = s.kpis.Absenteeism(ctx, clientID, period); err != nil {
		return nil, err
	}
	if summary.KPIs.OTD, err = s.kpis.OnTimeDelivery(ctx, clientID, period); err != nil {
		return nil, err
	}
	if summary.KPIs.WIPAging, err = s.kpis.WIPAging(ctx, clientID); err != nil {
		return nil, err
	}

	s.toCache(ctx, key, summary)
	return summary, nil
}

// fromCache returns a cached summary, or nil on miss, error or corrupt
// payload. Cache problems never fail the request.
func (s *dashboardService) fromCache(ctx context.Context, key string) *models.DashboardSummary {
	if s.redis == nil {
		return nil
	}

	raw, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}

	var summary models.DashboardSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.logger.Warn("Dashboard cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &summary
}

// toCache stores a computed summary, best effort.
func (s *dashboardService) toCache(ctx context.Context, key string, summary *models.DashboardSummary) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("Dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// dashboardCacheKey formats the cache key for one client and period. Periods
// are date granular, so dates key the entry.
func dashboardCacheKey(clientID uuid.UUID, period models.Period) string {
	return fmt.Sprintf("dashboard:%s:%s:%s",
		clientID,
		period.From.Format("2006-01-02"),
		period.To.Format("2006-01-02"))
}

// Ensure dashboardService implements DashboardService at compile time.
var _ DashboardService = (*dashboardService)(nil)
