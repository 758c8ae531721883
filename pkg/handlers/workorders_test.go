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

func workOrderBody(dueDate string) string {
	return `{
		"client_id": "` + uuid.NewString() + `",
		"code": "WO-1001",
		"product_code": "WIDGET-1",
		"quantity": 1000,
		"completed_qty": 0,
		"scrap_qty": 0,
		"due_date": "` + dueDate + `"
	}`
}

func TestWorkOrderHandler_Create(t *testing.T) {
	handler := NewWorkOrderHandler(&mockWorkOrderService{}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders", strings.NewReader(workOrderBody("2026-04-30")))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.WorkOrder `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	order := resp.Data
	if order.Code != "WO-1001" || order.Quantity != 1000 {
		t.Errorf("order not mapped: %+v", order)
	}
	if want := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC); !order.DueDate.Equal(want) {
		t.Errorf("expected due date %v, got %v", want, order.DueDate)
	}
	if order.DeliveredAt != nil {
		t.Errorf("new order must not be delivered, got %v", order.DeliveredAt)
	}
}

func TestWorkOrderHandler_Create_BadDueDate(t *testing.T) {
	handler := NewWorkOrderHandler(&mockWorkOrderService{}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders", strings.NewReader(workOrderBody("30/04/2026")))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "invalid_due_date" {
		t.Errorf("expected invalid_due_date, got %q", got)
	}
}

func TestWorkOrderHandler_GetByCode(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := &mockWorkOrderService{}
		handler := NewWorkOrderHandler(mock, nil, zap.NewNop())
		clientID := uuid.New()

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/work-orders/by-code?client_id="+clientID.String()+"&code=WO-1001", nil)
		rec := httptest.NewRecorder()

		handler.GetByCode(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Data models.WorkOrder `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v", err)
		}
		if resp.Data.Code != "WO-1001" || resp.Data.ClientID != clientID {
			t.Errorf("unexpected order: %+v", resp.Data)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		handler := NewWorkOrderHandler(&mockWorkOrderService{}, nil, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/work-orders/by-code?client_id="+uuid.NewString(), nil)
		rec := httptest.NewRecorder()

		handler.GetByCode(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if got := decodeError(t, rec); got != "missing_code" {
			t.Errorf("expected missing_code, got %q", got)
		}
	})

	t.Run("injection in code", func(t *testing.T) {
		handler := NewWorkOrderHandler(&mockWorkOrderService{}, nil, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/work-orders/by-code?client_id="+uuid.NewString()+"&code=%27%20OR%20%271%27%3D%271", nil)
		rec := httptest.NewRecorder()

		handler.GetByCode(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if got := decodeError(t, rec); got != "invalid_parameters" {
			t.Errorf("expected invalid_parameters, got %q", got)
		}
	})
}

func TestWorkOrderHandler_MarkDelivered(t *testing.T) {
	t.Run("empty body means now", func(t *testing.T) {
		mock := &mockWorkOrderService{}
		handler := NewWorkOrderHandler(mock, nil, zap.NewNop())
		orderID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders/"+orderID.String()+"/deliver", nil)
		req.SetPathValue("id", orderID.String())
		rec := httptest.NewRecorder()

		before := time.Now().UTC()
		handler.MarkDelivered(rec, req)
		after := time.Now().UTC()

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if mock.lastDeliveredID != orderID {
			t.Errorf("expected delivery recorded for %v, got %v", orderID, mock.lastDeliveredID)
		}
		if mock.lastDeliveredAt.Before(before) || mock.lastDeliveredAt.After(after) {
			t.Errorf("expected delivery stamped now, got %v", mock.lastDeliveredAt)
		}
	})

	t.Run("explicit date", func(t *testing.T) {
		mock := &mockWorkOrderService{}
		handler := NewWorkOrderHandler(mock, nil, zap.NewNop())
		orderID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders/"+orderID.String()+"/deliver",
			strings.NewReader(`{"delivered_at":"2026-03-20"}`))
		req.SetPathValue("id", orderID.String())
		rec := httptest.NewRecorder()

		handler.MarkDelivered(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if want := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC); !mock.lastDeliveredAt.Equal(want) {
			t.Errorf("expected delivery at %v, got %v", want, mock.lastDeliveredAt)
		}
	})

	t.Run("explicit timestamp", func(t *testing.T) {
		mock := &mockWorkOrderService{}
		handler := NewWorkOrderHandler(mock, nil, zap.NewNop())
		orderID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders/"+orderID.String()+"/deliver",
			strings.NewReader(`{"delivered_at":"2026-03-20T16:45:00Z"}`))
		req.SetPathValue("id", orderID.String())
		rec := httptest.NewRecorder()

		handler.MarkDelivered(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if want := time.Date(2026, 3, 20, 16, 45, 0, 0, time.UTC); !mock.lastDeliveredAt.Equal(want) {
			t.Errorf("expected delivery at %v, got %v", want, mock.lastDeliveredAt)
		}
	})

	t.Run("unparseable timestamp", func(t *testing.T) {
		handler := NewWorkOrderHandler(&mockWorkOrderService{}, nil, zap.NewNop())
		orderID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders/"+orderID.String()+"/deliver",
			strings.NewReader(`{"delivered_at":"next tuesday"}`))
		req.SetPathValue("id", orderID.String())
		rec := httptest.NewRecorder()

		handler.MarkDelivered(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if got := decodeError(t, rec); got != "invalid_delivered_at" {
			t.Errorf("expected invalid_delivered_at, got %q", got)
		}
	})

	t.Run("already delivered is a conflict", func(t *testing.T) {
		mock := &mockWorkOrderService{deliverErr: apperrors.ErrConflict}
		handler := NewWorkOrderHandler(mock, nil, zap.NewNop())
		orderID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders/"+orderID.String()+"/deliver", nil)
		req.SetPathValue("id", orderID.String())
		rec := httptest.NewRecorder()

		handler.MarkDelivered(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
		if got := decodeError(t, rec); got != "conflict" {
			t.Errorf("expected conflict, got %q", got)
		}
	})
}
