package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// WorkOrderHandler handles work order HTTP requests.
type WorkOrderHandler struct {
	workOrderService services.WorkOrderService
	auditor          *audit.SecurityAuditor
	logger           *zap.Logger
}

// NewWorkOrderHandler creates a new work order handler.
func NewWorkOrderHandler(workOrderService services.WorkOrderService, auditor *audit.SecurityAuditor, logger *zap.Logger) *WorkOrderHandler {
	return &WorkOrderHandler{
		workOrderService: workOrderService,
		auditor:          auditor,
		logger:           logger,
	}
}

// RegisterRoutes registers the work order routes on the given mux.
func (h *WorkOrderHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/work-orders"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/by-code", authMiddleware.RequireAuth(scopeMiddleware(h.GetByCode)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(scopeMiddleware(h.Update)))
	mux.HandleFunc("POST "+base+"/{id}/deliver", authMiddleware.RequireAuth(scopeMiddleware(h.MarkDelivered)))
}

type workOrderRequest struct {
	ClientID     uuid.UUID `json:"client_id"`
	Code         string    `json:"code"`
	ProductCode  string    `json:"product_code"`
	Quantity     int       `json:"quantity"`
	CompletedQty int       `json:"completed_qty"`
	ScrapQty     int       `json:"scrap_qty"`
	DueDate      string    `json:"due_date"`
}

type markDeliveredRequest struct {
	DeliveredAt string `json:"delivered_at"` // empty = now
}

// decodeWorkOrder reads and converts the request body. Returns false after
// writing an error response when the body is unusable.
func (h *WorkOrderHandler) decodeWorkOrder(w http.ResponseWriter, r *http.Request) (*models.WorkOrder, bool) {
	var req workOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return nil, false
	}

	dueDate, err := time.Parse(dateLayout, req.DueDate)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_due_date", "due_date must be a YYYY-MM-DD date")
		return nil, false
	}

	if !screenFreeText(w, r, req.ClientID, h.auditor, map[string]string{
		"code":         req.Code,
		"product_code": req.ProductCode,
	}) {
		return nil, false
	}

	return &models.WorkOrder{
		ClientID:     req.ClientID,
		Code:         req.Code,
		ProductCode:  req.ProductCode,
		Quantity:     req.Quantity,
		CompletedQty: req.CompletedQty,
		ScrapQty:     req.ScrapQty,
		DueDate:      dueDate,
	}, true
}

// Create handles POST /api/v1/work-orders
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	order, ok := h.decodeWorkOrder(w, r)
	if !ok {
		return
	}

	if err := h.workOrderService.Create(r.Context(), order); err != nil {
		RespondServiceError(w, r, err, order.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: order}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/work-orders
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseWorkOrderFilters(r)

	orders, total, err := h.workOrderService.List(r.Context(), filters)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if orders == nil {
		orders = make([]*models.WorkOrder, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginatedResponse{
			Items:  orders,
			Total:  total,
			Limit:  filters.Limit,
			Offset: filters.Offset,
		},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/work-orders/{id}
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseWorkOrderID(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.workOrderService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetByCode handles GET /api/v1/work-orders/by-code?client_id=&code=
func (h *WorkOrderHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientIDQuery(w, r, h.logger)
	if !ok {
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		ErrorResponse(w, http.StatusBadRequest, "missing_code", "code query parameter is required")
		return
	}
	if !screenFreeText(w, r, clientID, h.auditor, map[string]string{"code": code}) {
		return
	}

	order, err := h.workOrderService.GetByCode(r.Context(), clientID, code)
	if err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/v1/work-orders/{id}
func (h *WorkOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseWorkOrderID(w, r, h.logger)
	if !ok {
		return
	}

	order, ok := h.decodeWorkOrder(w, r)
	if !ok {
		return
	}
	order.ID = id

	if err := h.workOrderService.Update(r.Context(), order); err != nil {
		RespondServiceError(w, r, err, order.ClientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// MarkDelivered handles POST /api/v1/work-orders/{id}/deliver
//
// The delivery time is recorded once; delivering an already delivered order
// is a conflict. An empty body or delivered_at means "now".
func (h *WorkOrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseWorkOrderID(w, r, h.logger)
	if !ok {
		return
	}

	var req markDeliveredRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	deliveredAt := time.Now().UTC()
	if req.DeliveredAt != "" {
		parsed, err := parseDeliveredAt(req.DeliveredAt)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid_delivered_at", "delivered_at must be an RFC3339 timestamp or YYYY-MM-DD date")
			return
		}
		deliveredAt = parsed
	}

	if err := h.workOrderService.MarkDelivered(r.Context(), id, deliveredAt); err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	order, err := h.workOrderService.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, uuid.Nil, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parseDeliveredAt accepts a full timestamp or a bare date.
func parseDeliveredAt(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, v)
}
