package audit

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
)

// JSONAuditLogger writes structured logs to stdout tagged with a
// "log_type=AUDIT_TRAIL" marker that log aggregators can filter into a
// separate, longer-retention index, independent of whether the durable
// Postgres write in PostgresLogger succeeds. Wiring both is intentional:
// the DB row is the source of truth, the stdout stream is the trip-wire
// an operator sees in real time.
type JSONAuditLogger struct {
	logger *slog.Logger
}

func NewJSONAuditLogger() *JSONAuditLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &JSONAuditLogger{logger: slog.New(handler)}
}

func (l *JSONAuditLogger) Log(ctx context.Context, action domain.AuditAction, orgID, userID *uuid.UUID, metadata map[string]any) {
	fields := []any{
		slog.String("log_type", "AUDIT_TRAIL"),
		slog.String("action", string(action)),
		slog.Time("timestamp_utc", time.Now().UTC()),
	}
	if orgID != nil {
		fields = append(fields, slog.String("organization_id", orgID.String()))
	}
	if userID != nil {
		fields = append(fields, slog.String("user_id", userID.String()))
	}
	for k, v := range metadata {
		fields = append(fields, slog.Any("meta_"+k, v))
	}
	l.logger.InfoContext(ctx, "audit_event", fields...)
}

// MockLogger is a no-op Service for tests that don't care about audit
// side effects.
type MockLogger struct{}

func (MockLogger) Log(ctx context.Context, action domain.AuditAction, orgID, userID *uuid.UUID, metadata map[string]any) {
}

// Multi fans a single Log call out to every wrapped Service, used at
// bootstrap to drive both PostgresLogger and JSONAuditLogger from one
// call site.
type Multi []Service

func (m Multi) Log(ctx context.Context, action domain.AuditAction, orgID, userID *uuid.UUID, metadata map[string]any) {
	for _, s := range m {
		s.Log(ctx, action, orgID, userID, metadata)
	}
}
