package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// KPIHandler serves the individual KPI read endpoints. Every endpoint takes
// an explicit client_id plus a from/to period; requesting a client outside
// the caller's scope is a 403 and an audit event, never an empty result.
type KPIHandler struct {
	kpiService services.KPIService
	auditor    *audit.SecurityAuditor
	logger     *zap.Logger
}

// NewKPIHandler creates a new KPI handler.
func NewKPIHandler(kpiService services.KPIService, auditor *audit.SecurityAuditor, logger *zap.Logger) *KPIHandler {
	return &KPIHandler{
		kpiService: kpiService,
		auditor:    auditor,
		logger:     logger,
	}
}

// RegisterRoutes registers the KPI routes on the given mux.
func (h *KPIHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	base := "/api/v1/kpi"

	mux.HandleFunc("GET "+base+"/efficiency", authMiddleware.RequireAuth(scopeMiddleware(h.Efficiency)))
	mux.HandleFunc("GET "+base+"/performance", authMiddleware.RequireAuth(scopeMiddleware(h.Performance)))
	mux.HandleFunc("GET "+base+"/quality/ppm", authMiddleware.RequireAuth(scopeMiddleware(h.PPM)))
	mux.HandleFunc("GET "+base+"/quality/dpmo", authMiddleware.RequireAuth(scopeMiddleware(h.DPMO)))
	mux.HandleFunc("GET "+base+"/quality/fpy", authMiddleware.RequireAuth(scopeMiddleware(h.FPY)))
	mux.HandleFunc("GET "+base+"/quality/rty", authMiddleware.RequireAuth(scopeMiddleware(h.RTY)))
	mux.HandleFunc("GET "+base+"/availability", authMiddleware.RequireAuth(scopeMiddleware(h.Availability)))
	mux.HandleFunc("GET "+base+"/absenteeism", authMiddleware.RequireAuth(scopeMiddleware(h.Absenteeism)))
	mux.HandleFunc("GET "+base+"/otd", authMiddleware.RequireAuth(scopeMiddleware(h.OnTimeDelivery)))
	mux.HandleFunc("GET "+base+"/wip-aging", authMiddleware.RequireAuth(scopeMiddleware(h.WIPAging)))
}

// Efficiency handles GET /api/v1/kpi/efficiency
func (h *KPIHandler) Efficiency(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.kpiService.Efficiency)
}

// Performance handles GET /api/v1/kpi/performance
func (h *KPIHandler) Performance(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.kpiService.Performance)
}

// PPM handles GET /api/v1/kpi/quality/ppm
func (h *KPIHandler) PPM(w http.ResponseWriter, r *http.Request) {
	h.serveProduct(w, r, h.kpiService.PartsPerMillion)
}

// DPMO handles GET /api/v1/kpi/quality/dpmo
func (h *KPIHandler) DPMO(w http.ResponseWriter, r *http.Request) {
	h.serveProduct(w, r, h.kpiService.DefectsPerMillionOpportunities)
}

// FPY handles GET /api/v1/kpi/quality/fpy
func (h *KPIHandler) FPY(w http.ResponseWriter, r *http.Request) {
	h.serveProduct(w, r, h.kpiService.FirstPassYield)
}

// RTY handles GET /api/v1/kpi/quality/rty
func (h *KPIHandler) RTY(w http.ResponseWriter, r *http.Request) {
	h.serveProduct(w, r, h.kpiService.RolledThroughputYield)
}

// Availability handles GET /api/v1/kpi/availability
func (h *KPIHandler) Availability(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.kpiService.Availability)
}

// Absenteeism handles GET /api/v1/kpi/absenteeism
func (h *KPIHandler) Absenteeism(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.kpiService.Absenteeism)
}

// OnTimeDelivery handles GET /api/v1/kpi/otd
func (h *KPIHandler) OnTimeDelivery(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.kpiService.OnTimeDelivery)
}

// WIPAging handles GET /api/v1/kpi/wip-aging
//
// WIP aging reports on holds currently in effect, so it takes no period.
func (h *KPIHandler) WIPAging(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientIDQuery(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.kpiService.WIPAging(r.Context(), clientID)
	if err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: report}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// serve runs one period-bound KPI calculation and writes the report.
func (h *KPIHandler) serve(w http.ResponseWriter, r *http.Request, compute func(ctx context.Context, clientID uuid.UUID, period models.Period) (*models.KPIReport, error)) {
	clientID, ok := ParseClientIDQuery(w, r, h.logger)
	if !ok {
		return
	}
	period, ok := ParsePeriod(w, r, h.logger)
	if !ok {
		return
	}

	report, err := compute(r.Context(), clientID, period)
	if err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: report}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// serveProduct is serve for the quality KPIs that accept an optional
// product_code filter.
func (h *KPIHandler) serveProduct(w http.ResponseWriter, r *http.Request, compute func(ctx context.Context, clientID uuid.UUID, period models.Period, productCode string) (*models.KPIReport, error)) {
	clientID, ok := ParseClientIDQuery(w, r, h.logger)
	if !ok {
		return
	}
	period, ok := ParsePeriod(w, r, h.logger)
	if !ok {
		return
	}

	productCode := r.URL.Query().Get("product_code")
	if !screenFreeText(w, r, clientID, h.auditor, map[string]string{
		"product_code": productCode,
	}) {
		return
	}

	report, err := compute(r.Context(), clientID, period, productCode)
	if err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: report}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
