// Package audit writes the engine's security event trail. Events go out as
// structured JSON on a dedicated logger namespace so a SIEM can filter them
// without parsing application logs.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opsline-io/opsline-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventAccessDenied fires when a user requests data for a client outside
	// their assigned scope.
	EventAccessDenied SecurityEventType = "client_access_denied"
	// EventInjectionAttempt fires when libinjection flags SQL patterns in
	// free-text input.
	EventInjectionAttempt SecurityEventType = "injection_attempt"
	// EventAdminAction fires on privileged mutations such as role changes and
	// client provisioning.
	EventAdminAction SecurityEventType = "admin_action"
)

// Severity levels attached to events. A SIEM rule keying on "critical" should
// page; "warning" accumulates toward probing detection.
const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// SecurityEvent is the JSON envelope every audit entry carries.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ClientID  uuid.UUID         `json:"client_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// InjectionDetails carries the specifics of a flagged input.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Endpoint    string `json:"endpoint"`
}

// SecurityAuditor emits security events on the "security_audit" logger
// namespace.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor wraps the given logger in the audit namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// emit stamps the event, serializes it, and logs it with the flat fields the
// SIEM indexes on. Marshal errors are ignored; the envelope only holds types
// that serialize.
func (a *SecurityAuditor) emit(level zapcore.Level, message string, event SecurityEvent, flat ...zap.Field) {
	event.Timestamp = time.Now().UTC()
	eventJSON, _ := json.Marshal(event)

	fields := make([]zap.Field, 0, len(flat)+3)
	fields = append(fields, zap.String("event_json", string(eventJSON)))
	fields = append(fields, flat...)
	fields = append(fields,
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
	a.logger.Log(level, message, fields...)
}

// LogAccessDenied records a cross-client access denial. Denials come back to
// the caller as 403, never masked as not-found, so this trail is the place to
// watch for probing.
func (a *SecurityAuditor) LogAccessDenied(ctx context.Context, clientID uuid.UUID, resource string, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)
	role := auth.GetRoleFromContext(ctx)

	a.emit(zapcore.WarnLevel, "Client access denied", SecurityEvent{
		EventType: EventAccessDenied,
		ClientID:  clientID,
		UserID:    userID,
		Role:      role,
		ClientIP:  clientIP,
		Details:   map[string]string{"resource": resource},
		Severity:  severityWarning,
	},
		zap.String("client_id", clientID.String()),
		zap.String("resource", resource),
		zap.String("client_ip", clientIP),
		zap.String("role", role),
	)
}

// LogInjectionAttempt records a flagged input at ERROR level with critical
// severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, clientID uuid.UUID, details InjectionDetails, clientIP string) {
	a.emit(zapcore.ErrorLevel, "Injection attempt detected", SecurityEvent{
		EventType: EventInjectionAttempt,
		ClientID:  clientID,
		UserID:    auth.GetUserIDFromContext(ctx),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severityCritical,
	},
		zap.String("client_id", clientID.String()),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("endpoint", details.Endpoint),
		zap.String("client_ip", clientIP),
	)
}

// LogAdminAction records a privileged mutation for the audit trail.
func (a *SecurityAuditor) LogAdminAction(ctx context.Context, action string, target string, clientIP string) {
	role := auth.GetRoleFromContext(ctx)

	a.emit(zapcore.InfoLevel, "Admin action", SecurityEvent{
		EventType: EventAdminAction,
		UserID:    auth.GetUserIDFromContext(ctx),
		Role:      role,
		ClientIP:  clientIP,
		Details:   map[string]string{"action": action, "target": target},
		Severity:  severityInfo,
	},
		zap.String("action", action),
		zap.String("target", target),
		zap.String("client_ip", clientIP),
		zap.String("role", role),
	)
}
