package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/kpi"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// kpiPageSize is how many rows each page fetch pulls while draining a
// period's entries.
const kpiPageSize = 200

// KPIService computes the manufacturing KPIs for a client over a period.
// Every method verifies the caller's scope covers the requested client
// before reading anything; KPI requests name a single client, so an
// unauthorized client is a denial, never an empty result.
type KPIService interface {
	Efficiency(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error)
	Performance(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error)
	// PartsPerMillion, DefectsPerMillionOpportunities, FirstPassYield and
	// RolledThroughputYield take an optional product code; empty means all
	// products.
	PartsPerMillion(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error)
	DefectsPerMillionOpportunities(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error)
	FirstPassYield(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error)
	RolledThroughputYield(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error)
	Availability(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error)
	Absenteeism(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error)
	OnTimeDelivery(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error)
	// WIPAging reports the mean days on hold across the client's holds that
	// are currently in effect, as of now.
	WIPAging(ctx context.Context, clientID uuid.UUID) (*models.KPIReport, error)
}

// kpiService implements KPIService.
type kpiService struct {
	productionRepo repositories.ProductionRepository
	qualityRepo    repositories.QualityRepository
	attendanceRepo repositories.AttendanceRepository
	downtimeRepo   repositories.DowntimeRepository
	holdRepo       repositories.HoldRepository
	workOrderRepo  repositories.WorkOrderRepository
	shiftRepo      repositories.ShiftRepository
	clientRepo     repositories.ClientRepository
	estimator      CycleTimeEstimator
	logger         *zap.Logger
}

// NewKPIService creates a new KPI service with dependencies.
func NewKPIService(
	productionRepo repositories.ProductionRepository,
	qualityRepo repositories.QualityRepository,
	attendanceRepo repositories.AttendanceRepository,
	downtimeRepo repositories.DowntimeRepository,
	holdRepo repositories.HoldRepository,
	workOrderRepo repositories.WorkOrderRepository,
	shiftRepo repositories.ShiftRepository,
	clientRepo repositories.ClientRepository,
	estimator CycleTimeEstimator,
	logger *zap.Logger,
) KPIService {
	return &kpiService{
		productionRepo: productionRepo,
		qualityRepo:    qualityRepo,
		attendanceRepo: attendanceRepo,
		downtimeRepo:   downtimeRepo,
		holdRepo:       holdRepo,
		workOrderRepo:  workOrderRepo,
		shiftRepo:      shiftRepo,
		clientRepo:     clientRepo,
		estimator:      estimator,
		logger:         logger,
	}
}

// Efficiency returns earned hours over staffed scheduled hours for the
// period: sum(units x cycle time) / sum(employees x shift hours). Scheduled
// hours come from each entry's shift, never from run time.
func (s *kpiService) Efficiency(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allProduction(ctx, clientID, period)
	if err != nil {
		return nil, err
	}

	shiftHours, err := s.shiftHoursByID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var earned, staffed float64
	inferred := false
	for _, entry := range entries {
		ct, wasInferred, err := s.resolveCycleTime(ctx, entry)
		if err != nil {
			return s.nullOnMissingHistory(models.KPIEfficiency, clientID, period, len(entries), entry.ProductCode, err)
		}
		inferred = inferred || wasInferred

		hours, ok := shiftHours[entry.ShiftID]
		if !ok {
			return nil, fmt.Errorf("production entry %s references unknown shift %s", entry.ID, entry.ShiftID)
		}
		earned += float64(entry.UnitsProduced) * ct
		staffed += float64(entry.EmployeesAssigned) * hours
	}

	result := kpi.Ratio(earned, staffed)
	result.Inferred = inferred
	return newKPIReport(models.KPIEfficiency, clientID, period, result, len(entries)), nil
}

// Performance returns earned hours over actual run time for the period:
// sum(units x cycle time) / sum(run time hours). Staffing does not factor in.
func (s *kpiService) Performance(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allProduction(ctx, clientID, period)
	if err != nil {
		return nil, err
	}

	var earned, runTime float64
	inferred := false
	for _, entry := range entries {
		ct, wasInferred, err := s.resolveCycleTime(ctx, entry)
		if err != nil {
			return s.nullOnMissingHistory(models.KPIPerformance, clientID, period, len(entries), entry.ProductCode, err)
		}
		inferred = inferred || wasInferred

		earned += float64(entry.UnitsProduced) * ct
		runTime += entry.RunTimeHours
	}

	result := kpi.Ratio(earned, runTime)
	result.Inferred = inferred
	return newKPIReport(models.KPIPerformance, clientID, period, result, len(entries)), nil
}

// PartsPerMillion returns defective units per million inspected across the
// period's quality entries.
func (s *kpiService) PartsPerMillion(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allQuality(ctx, clientID, period, productCode)
	if err != nil {
		return nil, err
	}

	var inspected, defective int
	for _, entry := range entries {
		inspected += entry.UnitsInspected
		defective += entry.UnitsDefective
	}

	result := kpi.PartsPerMillion(defective, inspected)
	return newKPIReport(models.KPIPPM, clientID, period, result, len(entries)), nil
}

// DefectsPerMillionOpportunities returns defects per million opportunities,
// summing each entry's inspected units times its opportunities per unit.
func (s *kpiService) DefectsPerMillionOpportunities(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allQuality(ctx, clientID, period, productCode)
	if err != nil {
		return nil, err
	}

	var defects int
	var opportunities float64
	for _, entry := range entries {
		defects += entry.DefectCount
		opportunities += float64(entry.UnitsInspected) * float64(entry.OpportunitiesPerUnit)
	}

	result := kpi.PerMillion(float64(defects), opportunities)
	return newKPIReport(models.KPIDPMO, clientID, period, result, len(entries)), nil
}

// FirstPassYield returns the percentage of inspected units that passed
// without defects across the period's quality entries.
func (s *kpiService) FirstPassYield(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allQuality(ctx, clientID, period, productCode)
	if err != nil {
		return nil, err
	}

	var inspected, defective int
	for _, entry := range entries {
		inspected += entry.UnitsInspected
		defective += entry.UnitsDefective
	}

	result := kpi.FirstPassYield(inspected, defective)
	return newKPIReport(models.KPIFPY, clientID, period, result, len(entries)), nil
}

// RolledThroughputYield multiplies per-step first pass yields in step
// sequence order. Entries sharing a step sequence are summed into one step
// before the product is taken.
func (s *kpiService) RolledThroughputYield(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allQuality(ctx, clientID, period, productCode)
	if err != nil {
		return nil, err
	}

	bySequence := make(map[int]*kpi.YieldStep)
	for _, entry := range entries {
		step, ok := bySequence[entry.StepSequence]
		if !ok {
			step = &kpi.YieldStep{Sequence: entry.StepSequence}
			bySequence[entry.StepSequence] = step
		}
		step.UnitsInspected += entry.UnitsInspected
		step.UnitsDefective += entry.UnitsDefective
	}

	steps := make([]kpi.YieldStep, 0, len(bySequence))
	for _, step := range bySequence {
		steps = append(steps, *step)
	}

	result := kpi.RolledThroughputYield(steps)
	return newKPIReport(models.KPIRTY, clientID, period, result, len(entries)), nil
}

// Availability returns the percentage of scheduled minutes the line was
// available. Scheduled minutes come from the shifts of the period's
// production entries, the same shift-hours computation Efficiency uses;
// downtime minutes come from the period's downtime entries.
func (s *kpiService) Availability(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	production, err := s.allProduction(ctx, clientID, period)
	if err != nil {
		return nil, err
	}
	downtime, err := s.allDowntime(ctx, clientID, period)
	if err != nil {
		return nil, err
	}

	shiftHours, err := s.shiftHoursByID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var scheduledMinutes float64
	for _, entry := range production {
		hours, ok := shiftHours[entry.ShiftID]
		if !ok {
			return nil, fmt.Errorf("production entry %s references unknown shift %s", entry.ID, entry.ShiftID)
		}
		scheduledMinutes += hours * 60
	}

	var downtimeMinutes float64
	for _, entry := range downtime {
		downtimeMinutes += float64(entry.DurationMinutes)
	}

	result := kpi.Availability(downtimeMinutes, scheduledMinutes)
	return newKPIReport(models.KPIAvailability, clientID, period, result, len(production)+len(downtime)), nil
}

// Absenteeism returns absence hours as a percentage of scheduled hours
// across the period's attendance entries.
func (s *kpiService) Absenteeism(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	entries, err := s.allAttendance(ctx, clientID, period)
	if err != nil {
		return nil, err
	}

	var absence, scheduled float64
	for _, entry := range entries {
		absence += entry.AbsenceHours
		scheduled += entry.ScheduledHours
	}

	result := kpi.Absenteeism(absence, scheduled)
	return newKPIReport(models.KPIAbsenteeism, clientID, period, result, len(entries)), nil
}

// OnTimeDelivery returns the percentage of the period's deliveries that
// landed on time under the client's OTD mode: zero grace days in TRUE mode,
// the client's configured grace window in STANDARD mode.
func (s *kpiService) OnTimeDelivery(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	if err := s.checkKPIRequest(ctx, clientID, period); err != nil {
		return nil, err
	}

	client, err := s.clientRepo.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	graceDays := 0
	if client.OTDMode != models.OTDModeTrue {
		graceDays = client.OTDGraceDays
	}

	orders, err := s.workOrderRepo.ListDeliveries(ctx, clientID, period.From, period.To)
	if err != nil {
		return nil, err
	}

	deliveries := make([]kpi.Delivery, 0, len(orders))
	for _, order := range orders {
		deliveries = append(deliveries, kpi.Delivery{
			DueDate:     order.DueDate,
			DeliveredAt: *order.DeliveredAt,
		})
	}

	result := kpi.OnTimeDelivery(deliveries, graceDays)
	return newKPIReport(models.KPIOTD, clientID, period, result, len(deliveries)), nil
}

// WIPAging returns the mean days on hold across the client's holds currently
// in effect. The report's period collapses to the evaluation instant.
func (s *kpiService) WIPAging(ctx context.Context, clientID uuid.UUID) (*models.KPIReport, error) {
	if err := requireClientScope(ctx, clientID); err != nil {
		return nil, err
	}

	holds, err := s.holdRepo.ListActive(ctx, clientID)
	if err != nil {
		return nil, err
	}

	asOf := time.Now()
	days := make([]float64, 0, len(holds))
	for _, hold := range holds {
		days = append(days, hold.DaysOnHold(asOf))
	}

	result := kpi.WIPAging(days)
	period := models.Period{From: asOf, To: asOf}
	return newKPIReport(models.KPIWIPAging, clientID, period, result, len(holds)), nil
}

// checkKPIRequest verifies the caller's scope covers the client and the
// period is well formed.
func (s *kpiService) checkKPIRequest(ctx context.Context, clientID uuid.UUID, period models.Period) error {
	if err := requireClientScope(ctx, clientID); err != nil {
		return err
	}
	return validatePeriod(period)
}

// nullOnMissingHistory converts a missing-history estimation error into a
// null report; entries exist but the KPI cannot be computed honestly, and a
// fabricated cycle time is worse than no answer. Other errors pass through.
func (s *kpiService) nullOnMissingHistory(name string, clientID uuid.UUID, period models.Period, sampleSize int, productCode string, err error) (*models.KPIReport, error) {
	if !errors.Is(err, apperrors.ErrNoCycleTimeHistory) {
		return nil, err
	}
	s.logger.Debug("KPI not computable without cycle time history",
		zap.String("kpi", name),
		zap.String("client_id", clientID.String()),
		zap.String("product_code", productCode))
	return &models.KPIReport{
		KPI:        name,
		ClientID:   clientID,
		From:       period.From,
		To:         period.To,
		SampleSize: sampleSize,
	}, nil
}

// resolveCycleTime returns the entry's ideal cycle time, estimating one from
// the product's recorded history when the entry has none.
func (s *kpiService) resolveCycleTime(ctx context.Context, entry *models.ProductionEntry) (float64, bool, error) {
	if entry.IdealCycleTime != nil {
		return *entry.IdealCycleTime, entry.CycleTimeInferred, nil
	}
	ct, err := s.estimator.Estimate(ctx, entry.ClientID, entry.ProductCode)
	if err != nil {
		return 0, false, err
	}
	return ct, true, nil
}

// shiftHoursByID maps the client's shifts, deactivated ones included, to
// their scheduled hours. Historical entries keep contributing the hours of
// shifts that have since been retired.
func (s *kpiService) shiftHoursByID(ctx context.Context, clientID uuid.UUID) (map[uuid.UUID]float64, error) {
	shifts, err := s.shiftRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	hours := make(map[uuid.UUID]float64, len(shifts))
	for _, shift := range shifts {
		h, err := shift.ScheduledHours()
		if err != nil {
			return nil, fmt.Errorf("shift %s has invalid times: %w", shift.ID, err)
		}
		hours[shift.ID] = h
	}
	return hours, nil
}

func (s *kpiService) allProduction(ctx context.Context, clientID uuid.UUID, period models.Period) ([]*models.ProductionEntry, error) {
	return drainPages(periodFilters(clientID, period, ""), func(f models.EntryFilters) ([]*models.ProductionEntry, int, error) {
		return s.productionRepo.List(ctx, f)
	})
}

func (s *kpiService) allQuality(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) ([]*models.QualityEntry, error) {
	return drainPages(periodFilters(clientID, period, productCode), func(f models.EntryFilters) ([]*models.QualityEntry, int, error) {
		return s.qualityRepo.List(ctx, f)
	})
}

func (s *kpiService) allAttendance(ctx context.Context, clientID uuid.UUID, period models.Period) ([]*models.AttendanceEntry, error) {
	return drainPages(periodFilters(clientID, period, ""), func(f models.EntryFilters) ([]*models.AttendanceEntry, int, error) {
		return s.attendanceRepo.List(ctx, f)
	})
}

func (s *kpiService) allDowntime(ctx context.Context, clientID uuid.UUID, period models.Period) ([]*models.DowntimeEntry, error) {
	return drainPages(periodFilters(clientID, period, ""), func(f models.EntryFilters) ([]*models.DowntimeEntry, int, error) {
		return s.downtimeRepo.List(ctx, f)
	})
}

// periodFilters builds the entry filters for one client over a period.
func periodFilters(clientID uuid.UUID, period models.Period, productCode string) models.EntryFilters {
	from := period.From
	to := period.To
	return models.EntryFilters{
		ClientIDs:   []uuid.UUID{clientID},
		ProductCode: productCode,
		From:        &from,
		To:          &to,
	}
}

// drainPages collects every row of a paged list query.
func drainPages[T any](filters models.EntryFilters, list func(models.EntryFilters) ([]T, int, error)) ([]T, error) {
	var all []T
	offset := 0
	for {
		filters.Limit = kpiPageSize
		filters.Offset = offset
		page, total, err := list(filters)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			return all, nil
		}
	}
}

// newKPIReport wraps a calculation result for one client and period.
func newKPIReport(name string, clientID uuid.UUID, period models.Period, result kpi.Result, sampleSize int) *models.KPIReport {
	value := result.Value
	return &models.KPIReport{
		KPI:        name,
		ClientID:   clientID,
		From:       period.From,
		To:         period.To,
		Value:      &value,
		Inferred:   result.Inferred,
		Degenerate: result.Degenerate,
		SampleSize: sampleSize,
	}
}

// validatePeriod rejects empty or inverted periods.
func validatePeriod(period models.Period) error {
	if period.From.IsZero() || period.To.IsZero() {
		return fmt.Errorf("%w: period from and to are required", apperrors.ErrValidation)
	}
	if period.To.Before(period.From) {
		return fmt.Errorf("%w: period to precedes from", apperrors.ErrValidation)
	}
	return nil
}

// requireClientScope denies the request unless the caller's scope covers the
// client. Single-client reads fail closed with a denial, never an empty
// result.
func requireClientScope(ctx context.Context, clientID uuid.UUID) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	return scope.RequireClient(clientID)
}

// Ensure kpiService implements KPIService at compile time.
var _ KPIService = (*kpiService)(nil)
