package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

// adminAction returns the single "Admin action" audit entry, failing the test
// when the trail does not hold exactly one.
func adminAction(t *testing.T, logs *observer.ObservedLogs) map[string]any {
	t.Helper()
	entries := logs.FilterMessage("Admin action").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 admin action audit entry, got %d", len(entries))
	}
	return entries[0].ContextMap()
}

func TestUserHandler_Provision(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	handler := NewUserHandler(&mockUserService{}, auditor, zap.NewNop())
	userID := uuid.New()
	adminID := uuid.New()

	body := `{
		"id": "` + userID.String() + `",
		"email": "jane@acme.example",
		"name": "Jane Duarte",
		"role": "leader"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	req = requestWithUser(req, adminID, models.RoleAdmin)
	rec := httptest.NewRecorder()

	handler.Provision(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	user := resp.Data
	if user.ID != userID || user.Email != "jane@acme.example" || user.Role != models.RoleLeader {
		t.Errorf("user not mapped: %+v", user)
	}
	if !user.Active {
		t.Error("provisioned user must start active")
	}

	ctx := adminAction(t, logs)
	if ctx["action"] != "user_provision" {
		t.Errorf("expected user_provision audit action, got %v", ctx["action"])
	}
	if ctx["target"] != userID.String() {
		t.Errorf("expected audit target %s, got %v", userID, ctx["target"])
	}
}

func TestUserHandler_Provision_ServiceValidation(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	mock := &mockUserService{err: apperrors.ErrValidation}
	handler := NewUserHandler(mock, auditor, zap.NewNop())

	body := `{"id":"` + uuid.NewString() + `","email":"x@acme.example","role":"welder"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	req = requestWithUser(req, uuid.New(), models.RoleAdmin)
	rec := httptest.NewRecorder()

	handler.Provision(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "validation_failed" {
		t.Errorf("expected validation_failed, got %q", got)
	}
	if logs.FilterMessage("Admin action").Len() != 0 {
		t.Error("failed provisioning must not be audited as an admin action")
	}
}

func TestUserHandler_UpdateRole(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	handler := NewUserHandler(&mockUserService{}, auditor, zap.NewNop())
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/"+userID.String()+"/role",
		strings.NewReader(`{"role":"poweruser"}`))
	req.SetPathValue("id", userID.String())
	req = requestWithUser(req, uuid.New(), models.RoleAdmin)
	rec := httptest.NewRecorder()

	handler.UpdateRole(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Role updated") {
		t.Errorf("expected confirmation message, got %s", rec.Body.String())
	}

	ctx := adminAction(t, logs)
	if ctx["action"] != "user_role_update" || ctx["target"] != userID.String() {
		t.Errorf("unexpected audit entry: %v", ctx)
	}
}

func TestUserHandler_Deactivate_LastAdmin(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	mock := &mockUserService{err: apperrors.ErrLastAdmin}
	handler := NewUserHandler(mock, auditor, zap.NewNop())
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/"+userID.String(), nil)
	req.SetPathValue("id", userID.String())
	req = requestWithUser(req, uuid.New(), models.RoleAdmin)
	rec := httptest.NewRecorder()

	handler.Deactivate(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "last_admin" {
		t.Errorf("expected last_admin, got %q", got)
	}
}

func TestUserHandler_Assign(t *testing.T) {
	t.Run("missing client_id", func(t *testing.T) {
		core, _ := observer.New(zap.DebugLevel)
		auditor := audit.NewSecurityAuditor(zap.New(core))
		handler := NewUserHandler(&mockUserService{}, auditor, zap.NewNop())
		userID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/"+userID.String()+"/assignments",
			strings.NewReader(`{}`))
		req.SetPathValue("id", userID.String())
		rec := httptest.NewRecorder()

		handler.Assign(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if got := decodeError(t, rec); got != "invalid_client_id" {
			t.Errorf("expected invalid_client_id, got %q", got)
		}
	})

	t.Run("grants access", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		auditor := audit.NewSecurityAuditor(zap.New(core))
		handler := NewUserHandler(&mockUserService{}, auditor, zap.NewNop())
		userID := uuid.New()
		clientID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/"+userID.String()+"/assignments",
			strings.NewReader(`{"client_id":"`+clientID.String()+`"}`))
		req.SetPathValue("id", userID.String())
		req = requestWithUser(req, uuid.New(), models.RoleAdmin)
		rec := httptest.NewRecorder()

		handler.Assign(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "Client assigned") {
			t.Errorf("expected confirmation message, got %s", rec.Body.String())
		}

		ctx := adminAction(t, logs)
		if ctx["action"] != "assignment_create" {
			t.Errorf("expected assignment_create audit action, got %v", ctx["action"])
		}
		if want := userID.String() + ":" + clientID.String(); ctx["target"] != want {
			t.Errorf("expected audit target %s, got %v", want, ctx["target"])
		}
	})
}

func TestUserHandler_Unassign_PrimaryAssignment(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	mock := &mockUserService{err: apperrors.ErrPrimaryAssignment}
	handler := NewUserHandler(mock, auditor, zap.NewNop())
	userID := uuid.New()
	clientID := uuid.New()

	req := httptest.NewRequest(http.MethodDelete,
		"/api/v1/users/"+userID.String()+"/assignments/"+clientID.String(), nil)
	req.SetPathValue("id", userID.String())
	req.SetPathValue("client_id", clientID.String())
	rec := httptest.NewRecorder()

	handler.Unassign(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "primary_assignment" {
		t.Errorf("expected primary_assignment, got %q", got)
	}
}

func TestUserHandler_SetPrimary(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	handler := NewUserHandler(&mockUserService{}, auditor, zap.NewNop())
	userID := uuid.New()
	clientID := uuid.New()

	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/users/"+userID.String()+"/assignments/"+clientID.String()+"/primary", nil)
	req.SetPathValue("id", userID.String())
	req.SetPathValue("client_id", clientID.String())
	req = requestWithUser(req, uuid.New(), models.RoleAdmin)
	rec := httptest.NewRecorder()

	handler.SetPrimary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Primary assignment updated") {
		t.Errorf("expected confirmation message, got %s", rec.Body.String())
	}

	ctx := adminAction(t, logs)
	if ctx["action"] != "assignment_set_primary" {
		t.Errorf("expected assignment_set_primary audit action, got %v", ctx["action"])
	}
}

func TestUserHandler_ListAssignments_EmptyIsArray(t *testing.T) {
	handler := NewUserHandler(&mockUserService{}, nil, zap.NewNop())
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/assignments", nil)
	req.SetPathValue("id", userID.String())
	rec := httptest.NewRecorder()

	handler.ListAssignments(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestUserHandler_ScopeSnapshot(t *testing.T) {
	userID := uuid.New()
	clientID := uuid.New()
	mock := &mockUserService{snapshot: &models.UserScopeSnapshot{
		UserID:          userID,
		Role:            models.RoleOperator,
		Active:          true,
		ClientIDs:       []uuid.UUID{clientID},
		PrimaryClientID: &clientID,
	}}
	handler := NewUserHandler(mock, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/scope", nil)
	req.SetPathValue("id", userID.String())
	rec := httptest.NewRecorder()

	handler.ScopeSnapshot(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.UserScopeSnapshot `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	snapshot := resp.Data
	if snapshot.UserID != userID || snapshot.Role != models.RoleOperator {
		t.Errorf("snapshot not mapped: %+v", snapshot)
	}
	if len(snapshot.ClientIDs) != 1 || snapshot.ClientIDs[0] != clientID {
		t.Errorf("expected client IDs [%v], got %v", clientID, snapshot.ClientIDs)
	}
	if snapshot.PrimaryClientID == nil || *snapshot.PrimaryClientID != clientID {
		t.Errorf("expected primary client %v, got %v", clientID, snapshot.PrimaryClientID)
	}
}

func TestUserHandler_Routes_AdminOnly(t *testing.T) {
	newMux := func(claims *auth.Claims) *http.ServeMux {
		core, _ := observer.New(zap.DebugLevel)
		handler := NewUserHandler(&mockUserService{}, audit.NewSecurityAuditor(zap.New(core)), zap.NewNop())
		middleware := auth.NewMiddleware(&mockAuthService{claims: claims, token: "jwt"}, zap.NewNop())
		mux := http.NewServeMux()
		handler.RegisterRoutes(mux, middleware, noopScopeMiddleware)
		return mux
	}

	t.Run("admin passes", func(t *testing.T) {
		claims := &auth.Claims{Role: models.RoleAdmin}
		claims.Subject = uuid.NewString()
		mux := newMux(claims)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("leader rejected", func(t *testing.T) {
		claims := &auth.Claims{Role: models.RoleLeader}
		claims.Subject = uuid.NewString()
		mux := newMux(claims)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
		if got := decodeError(t, rec); got != "forbidden" {
			t.Errorf("expected forbidden, got %q", got)
		}
	})
}
