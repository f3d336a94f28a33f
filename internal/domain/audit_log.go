package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRetention is the mandated retention period for audit rows; the
// application never updates or deletes them (enforced at the repository
// layer by simply not exposing Update/Delete for this entity).
const AuditRetention = 7 * 365 * 24 * time.Hour

// AuditLog is an immutable, append-only security log row.
type AuditLog struct {
	ID             uuid.UUID
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
	Action         AuditAction
	ResourceType   string
	ResourceID     *uuid.UUID
	IPAddress      string
	UserAgent      string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// NewAuditLog constructs a new immutable audit row.
func NewAuditLog(action AuditAction, orgID, userID *uuid.UUID) *AuditLog {
	return &AuditLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Action:         action,
		Metadata:       map[string]any{},
		CreatedAt:      time.Now().UTC(),
	}
}
