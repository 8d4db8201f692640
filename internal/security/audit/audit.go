package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
)

// Actions recorded in the audit trail.
const (
	ActionLogin          = "login"
	ActionRegister       = "register"
	ActionPasswordChange = "password_change"
	ActionPasswordReset  = "password_reset"
	ActionStatusChange   = "status_change"
	ActionEmailVerify    = "email_verify"
	ActionUserCreate     = "user_create"
	ActionPropertyCreate = "property_create"
	ActionAccessDenied   = "access_denied"
)

// Results recorded with an action.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusDenied    = "denied"
)

// Logger writes audit records as structured log entries tagged with the
// request's correlation id.
type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("log_type", "audit")), now: time.Now}
}

// LogAction records that actorID performed action on resource.
func (al *Logger) LogAction(ctx context.Context, actorID, action, resource, resourceID, status, details string) {
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("actor_id", actorID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", middleware.RequestIDFromContext(ctx)),
		slog.Time("timestamp", al.now().UTC()),
	)
}

// LogLogin records a login attempt. userID is empty for unknown emails.
func (al *Logger) LogLogin(ctx context.Context, userID, status, reason string) {
	al.LogAction(ctx, userID, ActionLogin, "user", userID, status, reason)
}

// LogUserChange records an action one principal took on another's account.
func (al *Logger) LogUserChange(ctx context.Context, actorID, action, targetID, details string) {
	al.LogAction(ctx, actorID, action, "user", targetID, StatusSucceeded, details)
}

// LogDenied records a refused operation.
func (al *Logger) LogDenied(ctx context.Context, actorID, resource, resourceID, reason string) {
	al.LogAction(ctx, actorID, ActionAccessDenied, resource, resourceID, StatusDenied, reason)
}
