package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/opsline-io/opsline-engine/pkg/auth"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return logger, recorded
}

func authedContext(userID, role string) context.Context {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Role:             role,
	}
	return context.WithValue(context.Background(), auth.ClaimsKey, claims)
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.NotNil(t, auditor)
	assert.NotNil(t, auditor.logger)
}

func TestLogAccessDenied(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	clientID := uuid.New()
	userID := uuid.New().String()
	ctx := authedContext(userID, "operator")

	auditor.LogAccessDenied(ctx, clientID, "kpi/efficiency", "192.168.1.100")

	entries := recorded.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "Client access denied", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, clientID.String(), fields["client_id"])
	assert.Equal(t, "kpi/efficiency", fields["resource"])
	assert.Equal(t, userID, fields["user_id"])
	assert.Equal(t, "operator", fields["role"])
	assert.Equal(t, "warning", fields["severity"])

	// The embedded event JSON must round-trip for SIEM pipelines.
	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, EventAccessDenied, event.EventType)
	assert.Equal(t, clientID, event.ClientID)
}

func TestLogAccessDenied_UnauthenticatedContext(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogAccessDenied(context.Background(), uuid.New(), "kpi/otd", "10.0.0.1")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "", entries[0].ContextMap()["user_id"])
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	clientID := uuid.New()
	details := InjectionDetails{
		ParamName:   "reason",
		ParamValue:  "'; DROP TABLE holds--",
		Fingerprint: "s&1c",
		Endpoint:    "/api/v1/holds",
	}

	auditor.LogInjectionAttempt(authedContext(uuid.New().String(), "leader"), clientID, details, "203.0.113.9")

	entries := recorded.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "Injection attempt detected", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "reason", fields["param_name"])
	assert.Equal(t, "s&1c", fields["fingerprint"])
	assert.Equal(t, "critical", fields["severity"])
}

func TestLogAdminAction(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogAdminAction(authedContext(uuid.New().String(), "admin"), "update_role", "user:abc", "10.1.2.3")

	entries := recorded.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "update_role", fields["action"])
	assert.Equal(t, "user:abc", fields["target"])
	assert.Equal(t, "info", fields["severity"])
}
