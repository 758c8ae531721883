package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

// noopScopeMiddleware is a passthrough scope middleware for unit tests that
// exercise a handler without claims-derived scope resolution.
func noopScopeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// mockAuthService is a configurable AuthService for handler tests. The
// claims it returns stand in for a validated JWT.
type mockAuthService struct {
	claims *auth.Claims
	token  string
	err    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.claims, m.token, nil
}

func (m *mockAuthService) RequireRole(claims *auth.Claims, allowed ...string) error {
	if claims.Role == "" {
		return auth.ErrMissingRole
	}
	for _, role := range allowed {
		if claims.Role == role {
			return nil
		}
	}
	return auth.ErrRoleNotAllowed
}

// mockProductionService is a configurable mock for production entry handler
// tests.
type mockProductionService struct {
	entry       *models.ProductionEntry
	entries     []*models.ProductionEntry
	total       int
	err         error
	lastFilters models.EntryFilters
}

func (m *mockProductionService) Create(ctx context.Context, entry *models.ProductionEntry) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = uuid.New()
	return nil
}

func (m *mockProductionService) Get(ctx context.Context, id uuid.UUID) (*models.ProductionEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.entry != nil {
		return m.entry, nil
	}
	return &models.ProductionEntry{ID: id, ClientID: uuid.New()}, nil
}

func (m *mockProductionService) List(ctx context.Context, filters models.EntryFilters) ([]*models.ProductionEntry, int, error) {
	m.lastFilters = filters
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.entries, m.total, nil
}

func (m *mockProductionService) Update(ctx context.Context, entry *models.ProductionEntry) error {
	return m.err
}

func (m *mockProductionService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockQualityService is a configurable mock for quality entry handler tests.
type mockQualityService struct {
	entry   *models.QualityEntry
	entries []*models.QualityEntry
	total   int
	err     error
}

func (m *mockQualityService) Create(ctx context.Context, entry *models.QualityEntry) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = uuid.New()
	return nil
}

func (m *mockQualityService) Get(ctx context.Context, id uuid.UUID) (*models.QualityEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.entry != nil {
		return m.entry, nil
	}
	return &models.QualityEntry{ID: id, ClientID: uuid.New()}, nil
}

func (m *mockQualityService) List(ctx context.Context, filters models.EntryFilters) ([]*models.QualityEntry, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.entries, m.total, nil
}

func (m *mockQualityService) Update(ctx context.Context, entry *models.QualityEntry) error {
	return m.err
}

func (m *mockQualityService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockAttendanceService is a configurable mock for attendance handler tests.
type mockAttendanceService struct {
	entry   *models.AttendanceEntry
	entries []*models.AttendanceEntry
	total   int
	err     error
}

func (m *mockAttendanceService) Create(ctx context.Context, entry *models.AttendanceEntry) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = uuid.New()
	return nil
}

func (m *mockAttendanceService) Get(ctx context.Context, id uuid.UUID) (*models.AttendanceEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.entry != nil {
		return m.entry, nil
	}
	return &models.AttendanceEntry{ID: id, ClientID: uuid.New()}, nil
}

func (m *mockAttendanceService) List(ctx context.Context, filters models.EntryFilters) ([]*models.AttendanceEntry, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.entries, m.total, nil
}

func (m *mockAttendanceService) Update(ctx context.Context, entry *models.AttendanceEntry) error {
	return m.err
}

func (m *mockAttendanceService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockDowntimeService is a configurable mock for downtime handler tests.
type mockDowntimeService struct {
	entry   *models.DowntimeEntry
	entries []*models.DowntimeEntry
	total   int
	err     error
}

func (m *mockDowntimeService) Create(ctx context.Context, entry *models.DowntimeEntry) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = uuid.New()
	return nil
}

func (m *mockDowntimeService) Get(ctx context.Context, id uuid.UUID) (*models.DowntimeEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.entry != nil {
		return m.entry, nil
	}
	return &models.DowntimeEntry{ID: id, ClientID: uuid.New()}, nil
}

func (m *mockDowntimeService) List(ctx context.Context, filters models.EntryFilters) ([]*models.DowntimeEntry, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.entries, m.total, nil
}

func (m *mockDowntimeService) Update(ctx context.Context, entry *models.DowntimeEntry) error {
	return m.err
}

func (m *mockDowntimeService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockWorkOrderService is a configurable mock for work order handler tests.
type mockWorkOrderService struct {
	order           *models.WorkOrder
	orders          []*models.WorkOrder
	total           int
	err             error
	deliverErr      error
	lastDeliveredID uuid.UUID
	lastDeliveredAt time.Time
}

func (m *mockWorkOrderService) Create(ctx context.Context, order *models.WorkOrder) error {
	if m.err != nil {
		return m.err
	}
	order.ID = uuid.New()
	return nil
}

func (m *mockWorkOrderService) Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.order != nil {
		return m.order, nil
	}
	return &models.WorkOrder{ID: id, ClientID: uuid.New(), Code: "WO-1"}, nil
}

func (m *mockWorkOrderService) GetByCode(ctx context.Context, clientID uuid.UUID, code string) (*models.WorkOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.order != nil {
		return m.order, nil
	}
	return &models.WorkOrder{ID: uuid.New(), ClientID: clientID, Code: code}, nil
}

func (m *mockWorkOrderService) List(ctx context.Context, filters models.WorkOrderFilters) ([]*models.WorkOrder, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.orders, m.total, nil
}

func (m *mockWorkOrderService) Update(ctx context.Context, order *models.WorkOrder) error {
	return m.err
}

func (m *mockWorkOrderService) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	m.lastDeliveredID = id
	m.lastDeliveredAt = deliveredAt
	if m.deliverErr != nil {
		return m.deliverErr
	}
	return m.err
}

// mockShiftService is a configurable mock for shift handler tests.
type mockShiftService struct {
	shift  *models.Shift
	shifts []*models.Shift
	err    error
}

func (m *mockShiftService) Create(ctx context.Context, shift *models.Shift) error {
	if m.err != nil {
		return m.err
	}
	shift.ID = uuid.New()
	return nil
}

func (m *mockShiftService) Get(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.shift != nil {
		return m.shift, nil
	}
	return &models.Shift{ID: id, ClientID: uuid.New(), Name: "Day", StartTime: "06:00", EndTime: "14:00", Active: true}, nil
}

func (m *mockShiftService) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Shift, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.shifts, nil
}

func (m *mockShiftService) Update(ctx context.Context, shift *models.Shift) error {
	return m.err
}

func (m *mockShiftService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockHoldService is a configurable mock for hold handler tests. Transition
// failures are configured through transitionErr so Get can still succeed
// when a handler re-reads the hold for the response.
type mockHoldService struct {
	hold           *models.HoldEntry
	holds          []*models.HoldEntry
	total          int
	err            error
	transitionErr  error
	lastApproverID uuid.UUID
}

func (m *mockHoldService) Request(ctx context.Context, hold *models.HoldEntry) error {
	if m.err != nil {
		return m.err
	}
	hold.ID = uuid.New()
	hold.Status = models.HoldStatusPendingApproval
	return nil
}

func (m *mockHoldService) Get(ctx context.Context, id uuid.UUID) (*models.HoldEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.hold != nil {
		return m.hold, nil
	}
	return &models.HoldEntry{ID: id, ClientID: uuid.New(), Status: models.HoldStatusOnHold}, nil
}

func (m *mockHoldService) List(ctx context.Context, filters models.HoldFilters) ([]*models.HoldEntry, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.holds, m.total, nil
}

func (m *mockHoldService) Approve(ctx context.Context, holdID, approverID uuid.UUID) error {
	m.lastApproverID = approverID
	return m.transitionErr
}

func (m *mockHoldService) Reject(ctx context.Context, holdID, approverID uuid.UUID) error {
	m.lastApproverID = approverID
	return m.transitionErr
}

func (m *mockHoldService) RequestResume(ctx context.Context, holdID uuid.UUID) error {
	return m.transitionErr
}

func (m *mockHoldService) ApproveResume(ctx context.Context, holdID, approverID uuid.UUID) error {
	m.lastApproverID = approverID
	return m.transitionErr
}

func (m *mockHoldService) RejectResume(ctx context.Context, holdID, approverID uuid.UUID) error {
	m.lastApproverID = approverID
	return m.transitionErr
}

func (m *mockHoldService) Cancel(ctx context.Context, holdID uuid.UUID) error {
	return m.transitionErr
}

// mockKPIService is a configurable mock for KPI handler tests. It records
// the arguments of the last call so tests can assert parameter plumbing.
type mockKPIService struct {
	report          *models.KPIReport
	err             error
	lastKPI         string
	lastClientID    uuid.UUID
	lastPeriod      models.Period
	lastProductCode string
}

func (m *mockKPIService) compute(kpiName string, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	m.lastKPI = kpiName
	m.lastClientID = clientID
	m.lastPeriod = period
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	value := 50.0
	return &models.KPIReport{
		KPI:      kpiName,
		ClientID: clientID,
		From:     period.From,
		To:       period.To,
		Value:    &value,
	}, nil
}

func (m *mockKPIService) Efficiency(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	return m.compute(models.KPIEfficiency, clientID, period)
}

func (m *mockKPIService) Performance(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	return m.compute(models.KPIPerformance, clientID, period)
}

func (m *mockKPIService) PartsPerMillion(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	m.lastProductCode = productCode
	return m.compute(models.KPIPPM, clientID, period)
}

func (m *mockKPIService) DefectsPerMillionOpportunities(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	m.lastProductCode = productCode
	return m.compute(models.KPIDPMO, clientID, period)
}

func (m *mockKPIService) FirstPassYield(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	m.lastProductCode = productCode
	return m.compute(models.KPIFPY, clientID, period)
}

func (m *mockKPIService) RolledThroughputYield(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error) {
	m.lastProductCode = productCode
	return m.compute(models.KPIRTY, clientID, period)
}

func (m *mockKPIService) Availability(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	return m.compute(models.KPIAvailability, clientID, period)
}

func (m *mockKPIService) Absenteeism(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	return m.compute(models.KPIAbsenteeism, clientID, period)
}

func (m *mockKPIService) OnTimeDelivery(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error) {
	return m.compute(models.KPIOTD, clientID, period)
}

func (m *mockKPIService) WIPAging(ctx context.Context, clientID uuid.UUID) (*models.KPIReport, error) {
	return m.compute(models.KPIWIPAging, clientID, models.Period{})
}

// mockDashboardService is a configurable mock for dashboard handler tests.
type mockDashboardService struct {
	summary *models.DashboardSummary
	err     error
}

func (m *mockDashboardService) Summary(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.DashboardSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.DashboardSummary{
		ClientID:    clientID,
		From:        period.From,
		To:          period.To,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// mockClientService is a configurable mock for client handler tests.
type mockClientService struct {
	client  *models.Client
	clients []*models.Client
	err     error
}

func (m *mockClientService) Provision(ctx context.Context, client *models.Client) error {
	return m.err
}

func (m *mockClientService) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.client != nil {
		return m.client, nil
	}
	return &models.Client{ID: id, Name: "Acme Manufacturing", Code: "ACME", Active: true}, nil
}

func (m *mockClientService) List(ctx context.Context) ([]*models.Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.clients, nil
}

func (m *mockClientService) Update(ctx context.Context, client *models.Client) error {
	return m.err
}

func (m *mockClientService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockUserService is a configurable mock for user handler tests.
type mockUserService struct {
	user        *models.User
	users       []*models.User
	assignments []*models.ClientAssignment
	snapshot    *models.UserScopeSnapshot
	err         error
}

func (m *mockUserService) Provision(ctx context.Context, user *models.User) error {
	return m.err
}

func (m *mockUserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user != nil {
		return m.user, nil
	}
	return &models.User{ID: id, Email: "worker@example.com", Role: models.RoleOperator, Active: true}, nil
}

func (m *mockUserService) List(ctx context.Context) ([]*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

func (m *mockUserService) UpdateRole(ctx context.Context, userID uuid.UUID, newRole string) error {
	return m.err
}

func (m *mockUserService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	return m.err
}

func (m *mockUserService) Assign(ctx context.Context, userID, clientID uuid.UUID) error {
	return m.err
}

func (m *mockUserService) Unassign(ctx context.Context, userID, clientID uuid.UUID) error {
	return m.err
}

func (m *mockUserService) SetPrimary(ctx context.Context, userID, clientID uuid.UUID) error {
	return m.err
}

func (m *mockUserService) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.ClientAssignment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.assignments, nil
}

func (m *mockUserService) ScopeSnapshot(ctx context.Context, userID uuid.UUID) (*models.UserScopeSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.snapshot != nil {
		return m.snapshot, nil
	}
	return &models.UserScopeSnapshot{UserID: userID, Role: models.RoleOperator, Active: true, ClientIDs: []uuid.UUID{}}, nil
}
