// Package outbox implements the transactional outbox pattern: domain
// events raised by an aggregate are written to a durable table in the
// same transaction as the business mutation that raised them, then
// delivered at-least-once by a separate polling Worker.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Row is the durable shape of a queued event, mirroring the outbox table.
type Row struct {
	ID             uuid.UUID
	AggregateID    uuid.UUID
	AggregateType  string
	EventType      string
	Payload        json.RawMessage
	OccurredAt     time.Time
	CreatedAt      time.Time
	AvailableAt    time.Time
	Attempts       int
	LastError      string
	DispatchedAt   *time.Time
}

// Write persists events to the outbox inside the caller's transaction, so
// the write either commits atomically with the business mutation or rolls
// back with it — the core guarantee of the pattern.
func Write(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("outbox: marshal event %s: %w", e.EventType(), err)
		}
		batch.Queue(
			`INSERT INTO outbox_events
				(id, organization_id, aggregate_id, aggregate_type, event_type, payload, occurred_at, created_at, available_at, attempts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 0)`,
			uuid.New(), orgID, e.AggregateID(), e.AggregateType(), e.EventType(), payload, e.OccurredAt(), now,
		)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("outbox: insert event: %w", err)
		}
	}
	return nil
}
