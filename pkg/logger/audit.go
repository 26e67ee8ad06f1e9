package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is a security-relevant event worth a durable trail:
// authentication attempts, lockouts, password resets.
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger writes structured audit records through the application
// logger. Emails and raw tokens never appear in audit output.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthAttempt records a login/register/refresh outcome.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log(event)
}

// LogLockout records a rate-limit lockout for an opaque client identifier.
func (al *AuditLogger) LogLockout(identifier, operation string, retryAfter int) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", "lockout"),
		slog.String("operation", operation),
		slog.String("client_identifier", identifier),
		slog.Int("retry_after", retryAfter),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogPasswordReset records reset requests and confirmations.
func (al *AuditLogger) LogPasswordReset(event AuditEvent) {
	al.log(event)
}

func (al *AuditLogger) log(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
