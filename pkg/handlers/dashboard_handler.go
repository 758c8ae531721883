package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// DashboardHandler serves the combined KPI dashboard summary.
type DashboardHandler struct {
	dashboardService services.DashboardService
	auditor          *audit.SecurityAuditor
	logger           *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboardService services.DashboardService, auditor *audit.SecurityAuditor, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		auditor:          auditor,
		logger:           logger,
	}
}

// RegisterRoutes registers the dashboard routes on the given mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("GET /api/v1/dashboard/summary", authMiddleware.RequireAuth(scopeMiddleware(h.Summary)))
}

// Summary handles GET /api/v1/dashboard/summary
//
// Returns all ten KPIs for one client over one period. The scope check runs
// before the cache, so a cached summary is never served to a caller who
// could not compute it.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientIDQuery(w, r, h.logger)
	if !ok {
		return
	}
	period, ok := ParsePeriod(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.dashboardService.Summary(r.Context(), clientID, period)
	if err != nil {
		RespondServiceError(w, r, err, clientID, h.auditor, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
