// Package audit implements the durable, append-only security log. Writes
// never block business transactions on success (callers pass the already
// committed mutation's context) and never silently disappear on DB
// failure — a write that cannot reach Postgres still reaches the
// structured log.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service records append-only audit entries. Implementations must never
// return an error that a caller would reasonably retry the business
// operation over — Log degrades to a structured-log fallback instead.
type Service interface {
	Log(ctx context.Context, action domain.AuditAction, orgID, userID *uuid.UUID, metadata map[string]any)
}

// PostgresLogger persists audit rows via a dedicated WithoutRLS transaction
// (audit writes must succeed regardless of which tenant's request caused
// them) and falls back to a tagged slog entry if the insert itself fails.
type PostgresLogger struct {
	pool     *pgxpool.Pool
	fallback *slog.Logger
}

func NewPostgresLogger(pool *pgxpool.Pool, fallback *slog.Logger) *PostgresLogger {
	return &PostgresLogger{pool: pool, fallback: fallback}
}

func (s *PostgresLogger) Log(ctx context.Context, action domain.AuditAction, orgID, userID *uuid.UUID, metadata map[string]any) {
	entry := domain.NewAuditLog(action, orgID, userID)
	if metadata != nil {
		entry.Metadata = metadata
	}

	metaBytes, err := json.Marshal(entry.Metadata)
	if err != nil {
		s.fallback.Error("audit_metadata_marshal_failed", "error", err, "action", action)
		metaBytes = []byte("{}")
	}

	err = storage.WithoutRLS(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, toPgUUIDPtr(orgID), toPgUUIDPtr(userID), string(entry.Action),
			entry.ResourceType, toPgUUIDPtr(entry.ResourceID), metaBytes, entry.CreatedAt)
		return err
	})

	if err != nil {
		s.fallback.Error("audit_db_insert_failed",
			"log_type", "AUDIT_TRAIL",
			"action", action,
			"error", err,
			"audit_id", entry.ID,
		)
	}
}

func toPgUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}
