package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/logging"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/screening"
)

// dateLayout is the wire form for entry dates and period bounds.
const dateLayout = "2006-01-02"

// ParseEntryID extracts and validates the entry ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseEntryID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_entry_id", "Invalid entry ID format", logger)
}

// ParseHoldID extracts and validates the hold ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseHoldID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_hold_id", "Invalid hold ID format", logger)
}

// ParseWorkOrderID extracts and validates the work order ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: id
func ParseWorkOrderID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_work_order_id", "Invalid work order ID format", logger)
}

// ParseShiftID extracts and validates the shift ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseShiftID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_shift_id", "Invalid shift ID format", logger)
}

// ParseClientID extracts and validates the client ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseClientID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_client_id", "Invalid client ID format", logger)
}

// ParseUserID extracts and validates the user ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_user_id", "Invalid user ID format", logger)
}

// ParseAssignmentClientID extracts and validates the client ID of an
// assignment route. Returns the parsed UUID and true on success, or uuid.Nil
// and false on error (after writing an error response).
// Expects path parameter: client_id
func ParseAssignmentClientID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "client_id", "invalid_client_id", "Invalid client ID format", logger)
}

// ParseClientIDQuery extracts and validates the required client_id query
// parameter. KPI and dashboard reads are always for one explicit client, so
// the scope check has a concrete target to allow or deny.
func ParseClientIDQuery(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("client_id")
	if raw == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_client_id", "client_id query parameter is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_client_id", "Invalid client ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// ParsePeriod extracts the from/to query parameters bounding a calculation
// period. Both bounds are required and use the 2006-01-02 date form; order
// and range checks belong to the service layer.
func ParsePeriod(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Period, bool) {
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_period", "from must be a YYYY-MM-DD date"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return models.Period{}, false
	}

	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_period", "to must be a YYYY-MM-DD date"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return models.Period{}, false
	}

	return models.Period{From: from, To: to}, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// parseEntryFilters reads the optional list filters shared by the entry
// endpoints. Unparseable values are ignored rather than rejected; client
// visibility is enforced by the access scope regardless of what is requested
// here.
func parseEntryFilters(r *http.Request) models.EntryFilters {
	q := r.URL.Query()
	filters := models.EntryFilters{
		ProductCode: q.Get("product_code"),
	}
	filters.Limit, filters.Offset = parsePaging(q)

	if v := q.Get("client_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filters.ClientIDs = []uuid.UUID{id}
		}
	}
	if v := q.Get("shift_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filters.ShiftID = &id
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			filters.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			filters.To = &t
		}
	}

	return filters
}

// parseHoldFilters reads the optional list filters for hold queries.
func parseHoldFilters(r *http.Request) models.HoldFilters {
	q := r.URL.Query()
	filters := models.HoldFilters{
		Status: q.Get("status"),
	}
	filters.Limit, filters.Offset = parsePaging(q)

	if v := q.Get("client_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filters.ClientIDs = []uuid.UUID{id}
		}
	}
	if v := q.Get("work_order_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filters.WorkOrderID = &id
		}
	}
	if v := q.Get("aged"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filters.Aged = &b
		}
	}

	return filters
}

// parseWorkOrderFilters reads the optional list filters for work order
// queries.
func parseWorkOrderFilters(r *http.Request) models.WorkOrderFilters {
	q := r.URL.Query()
	filters := models.WorkOrderFilters{}
	filters.Limit, filters.Offset = parsePaging(q)

	if v := q.Get("client_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filters.ClientIDs = []uuid.UUID{id}
		}
	}
	if v := q.Get("due_from"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			filters.DueFrom = &t
		}
	}
	if v := q.Get("due_to"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			filters.DueTo = &t
		}
	}
	if v := q.Get("delivered"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filters.Delivered = &b
		}
	}

	return filters
}

// parsePaging reads limit and offset with a default page size of 50.
func parsePaging(q url.Values) (limit, offset int) {
	limit = 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// screenFreeText rejects the request when any free-text field carries a SQL
// injection pattern. Every hit is audited before the 400 goes out. Returns
// true when all fields are clean.
func screenFreeText(w http.ResponseWriter, r *http.Request, clientID uuid.UUID, auditor *audit.SecurityAuditor, fields map[string]string) bool {
	results := screening.CheckFields(fields)
	if len(results) == 0 {
		return true
	}

	for _, res := range results {
		if auditor != nil {
			auditor.LogInjectionAttempt(r.Context(), clientID, audit.InjectionDetails{
				ParamName:   res.FieldName,
				ParamValue:  logging.TruncateString(res.FieldValue, 256),
				Fingerprint: res.Fingerprint,
				Endpoint:    r.URL.Path,
			}, r.RemoteAddr)
		}
	}

	ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "Input contains disallowed SQL patterns")
	return false
}
