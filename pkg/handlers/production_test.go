package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

func decodeEntry(t *testing.T, rec *httptest.ResponseRecorder) *models.ProductionEntry {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    models.ProductionEntry `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	return &resp.Data
}

func TestProductionHandler_Create(t *testing.T) {
	mock := &mockProductionService{}
	handler := NewProductionHandler(mock, nil, zap.NewNop())
	userID := uuid.New()
	clientID := uuid.New()
	shiftID := uuid.New()

	// Counts arrive as strings from tablet clients; the handler must accept
	// them alongside plain numbers.
	body := `{
		"client_id": "` + clientID.String() + `",
		"shift_id": "` + shiftID.String() + `",
		"product_code": "WIDGET-1",
		"entry_date": "2026-03-15",
		"units_produced": "480",
		"employees_assigned": 6,
		"run_time_hours": "7.5",
		"ideal_cycle_time": 0.015
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/production-entries", strings.NewReader(body))
	req = requestWithUser(req, userID, models.RoleOperator)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	entry := decodeEntry(t, rec)
	if entry.UnitsProduced != 480 {
		t.Errorf("expected 480 units from string count, got %d", entry.UnitsProduced)
	}
	if entry.EmployeesAssigned != 6 {
		t.Errorf("expected 6 employees, got %d", entry.EmployeesAssigned)
	}
	if entry.RunTimeHours != 7.5 {
		t.Errorf("expected 7.5 run time hours, got %v", entry.RunTimeHours)
	}
	if entry.IdealCycleTime == nil || *entry.IdealCycleTime != 0.015 {
		t.Errorf("expected ideal cycle time 0.015, got %v", entry.IdealCycleTime)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !entry.EntryDate.Equal(want) {
		t.Errorf("expected entry date %v, got %v", want, entry.EntryDate)
	}
	if entry.CreatedBy != userID {
		t.Errorf("expected entry attributed to %v, got %v", userID, entry.CreatedBy)
	}
}

func TestProductionHandler_Create_OmittedCycleTimeStaysNil(t *testing.T) {
	handler := NewProductionHandler(&mockProductionService{}, nil, zap.NewNop())

	body := `{
		"client_id": "` + uuid.NewString() + `",
		"shift_id": "` + uuid.NewString() + `",
		"product_code": "WIDGET-2",
		"entry_date": "2026-03-15",
		"units_produced": 100,
		"employees_assigned": 4,
		"run_time_hours": 8
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/production-entries", strings.NewReader(body))
	req = requestWithUser(req, uuid.New(), models.RoleOperator)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	// Absent means "infer from history", zero would mean a literal zero
	// cycle time, so the distinction matters downstream.
	if entry := decodeEntry(t, rec); entry.IdealCycleTime != nil {
		t.Errorf("expected nil ideal cycle time, got %v", *entry.IdealCycleTime)
	}
}

func TestProductionHandler_Create_Rejections(t *testing.T) {
	validBody := func(entryDate, productCode string) string {
		return `{
			"client_id": "` + uuid.NewString() + `",
			"shift_id": "` + uuid.NewString() + `",
			"product_code": "` + productCode + `",
			"entry_date": "` + entryDate + `",
			"units_produced": 10,
			"employees_assigned": 2,
			"run_time_hours": 4
		}`
	}

	tests := []struct {
		name       string
		body       string
		withUser   bool
		wantStatus int
		wantCode   string
	}{
		{"malformed body", "{not json", true, http.StatusBadRequest, "invalid_request"},
		{"bad entry date", validBody("15/03/2026", "WIDGET-1"), true, http.StatusBadRequest, "invalid_entry_date"},
		{"timestamp instead of date", validBody("2026-03-15T08:00:00Z", "WIDGET-1"), true, http.StatusBadRequest, "invalid_entry_date"},
		{"injection in product code", validBody("2026-03-15", "1' OR '1'='1"), true, http.StatusBadRequest, "invalid_parameters"},
		{"no authenticated user", validBody("2026-03-15", "WIDGET-1"), false, http.StatusUnauthorized, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewProductionHandler(&mockProductionService{}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/production-entries", strings.NewReader(tt.body))
			if tt.withUser {
				req = requestWithUser(req, uuid.New(), models.RoleOperator)
			}
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeError(t, rec); got != tt.wantCode {
				t.Errorf("expected error code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestProductionHandler_Create_ServiceValidation(t *testing.T) {
	mock := &mockProductionService{err: apperrors.ErrValidation}
	handler := NewProductionHandler(mock, nil, zap.NewNop())

	body := `{
		"client_id": "` + uuid.NewString() + `",
		"shift_id": "` + uuid.NewString() + `",
		"product_code": "WIDGET-1",
		"entry_date": "2026-03-15",
		"units_produced": 10,
		"employees_assigned": 0,
		"run_time_hours": 4
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/production-entries", strings.NewReader(body))
	req = requestWithUser(req, uuid.New(), models.RoleOperator)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "validation_failed" {
		t.Errorf("expected validation_failed, got %q", got)
	}
}

func TestProductionHandler_List(t *testing.T) {
	mock := &mockProductionService{
		entries: []*models.ProductionEntry{{ID: uuid.New(), ProductCode: "WIDGET-1"}},
		total:   12,
	}
	handler := NewProductionHandler(mock, nil, zap.NewNop())
	shiftID := uuid.New()

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/production-entries?shift_id="+shiftID.String()+"&product_code=WIDGET-1&from=2026-03-01&to=2026-03-31&limit=10",
		nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	filters := mock.lastFilters
	if filters.ShiftID == nil || *filters.ShiftID != shiftID {
		t.Errorf("expected shift filter %v, got %v", shiftID, filters.ShiftID)
	}
	if filters.ProductCode != "WIDGET-1" {
		t.Errorf("expected product code filter, got %q", filters.ProductCode)
	}
	if filters.From == nil || filters.From.Format(dateLayout) != "2026-03-01" {
		t.Errorf("expected from filter, got %v", filters.From)
	}
	if filters.Limit != 10 {
		t.Errorf("expected limit 10, got %d", filters.Limit)
	}

	var resp struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Data.Total != 12 {
		t.Errorf("expected total 12, got %d", resp.Data.Total)
	}
}

func TestProductionHandler_List_ScreensProductCode(t *testing.T) {
	mock := &mockProductionService{}
	handler := NewProductionHandler(mock, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/production-entries?product_code=%27%3B%20DROP%20TABLE%20engine_production_entries--",
		nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "invalid_parameters" {
		t.Errorf("expected invalid_parameters, got %q", got)
	}
}

func TestProductionHandler_Update_UsesPathID(t *testing.T) {
	mock := &mockProductionService{}
	handler := NewProductionHandler(mock, nil, zap.NewNop())
	entryID := uuid.New()

	body := `{
		"client_id": "` + uuid.NewString() + `",
		"shift_id": "` + uuid.NewString() + `",
		"product_code": "WIDGET-1",
		"entry_date": "2026-03-16",
		"units_produced": 500,
		"employees_assigned": 6,
		"run_time_hours": 7.5
	}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/production-entries/"+entryID.String(), strings.NewReader(body))
	req.SetPathValue("id", entryID.String())
	req = requestWithUser(req, uuid.New(), models.RoleLeader)
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if entry := decodeEntry(t, rec); entry.ID != entryID {
		t.Errorf("expected path ID %v on the entry, got %v", entryID, entry.ID)
	}
}

func TestProductionHandler_Delete(t *testing.T) {
	handler := NewProductionHandler(&mockProductionService{}, nil, zap.NewNop())
	entryID := uuid.New()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/production-entries/"+entryID.String(), nil)
	req.SetPathValue("id", entryID.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Production entry deleted") {
		t.Errorf("expected deletion message, got %s", rec.Body.String())
	}
}

func TestProductionHandler_Get_NotFound(t *testing.T) {
	mock := &mockProductionService{err: apperrors.ErrNotFound}
	handler := NewProductionHandler(mock, nil, zap.NewNop())
	entryID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/production-entries/"+entryID.String(), nil)
	req.SetPathValue("id", entryID.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "not_found" {
		t.Errorf("expected not_found, got %q", got)
	}
}
