// Package audit records auth events to the audit_logs table and forwards them
// to the telemetry sinks.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vidtube-auth/internal/audit/domain"
	auditrepo "vidtube-auth/internal/audit/repository"
	"vidtube-auth/internal/telemetry"
)

// eventSource identifies this service on published events.
const eventSource = "vidtube-auth"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures
// are logged and never affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action string, metadata map[string]string)
}

// Dispatcher publishes events asynchronously; *telemetry.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(event *telemetry.Event)
}

// Logger implements AuditLogger using the audit repository, an optional IP
// extractor and an optional telemetry dispatcher.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	dispatcher  Dispatcher
	logger      *slog.Logger
	now         func() time.Time
}

// NewLogger returns a Logger that persists to repo. ipExtractor and dispatcher
// may be nil; without an extractor the IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, dispatcher Dispatcher, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// LogEvent writes one audit entry and dispatches the matching telemetry event.
func (l *Logger) LogEvent(ctx context.Context, userID, action string, metadata map[string]string) {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.logger.ErrorContext(ctx, "audit: failed to log event", "action", action, "user_id", userID, "error", err)
		}
	}
	if l.dispatcher != nil {
		l.dispatcher.Dispatch(&telemetry.Event{
			ID:        entry.ID,
			Action:    entry.Action,
			UserID:    entry.UserID,
			IP:        entry.IP,
			Source:    eventSource,
			Metadata:  entry.Metadata,
			CreatedAt: entry.CreatedAt,
		})
	}
}
