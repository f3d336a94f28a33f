package outbox

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxAttempts is the number of delivery attempts before a row is parked
// (left in the table with attempts >= MaxAttempts for manual inspection,
// never deleted).
const MaxAttempts = 10

// BatchSize bounds how many rows a single poll tick leases.
const BatchSize = 50

// Handler delivers one outbox row to whatever downstream consumer cares
// about it (e.g. the messaging pipeline's provider dispatch). A nil error
// marks the row dispatched; any error reschedules it with backoff.
type Handler func(ctx context.Context, row Row) error

// Worker polls the outbox table and drives Handler for each leased row.
type Worker struct {
	pool    *pgxpool.Pool
	handler Handler
	log     *slog.Logger
	tick    time.Duration
}

// NewWorker constructs a Worker. tick is the polling interval between
// sweeps when nothing is due.
func NewWorker(pool *pgxpool.Pool, handler Handler, log *slog.Logger, tick time.Duration) *Worker {
	return &Worker{pool: pool, handler: handler, log: log, tick: tick}
}

// Run polls until ctx is cancelled, the way the teacher's Janitor worker
// loop does with its ticker and select over ctx.Done().
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("outbox worker stopping")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.log.Error("outbox sweep failed", "error", err)
			}
		}
	}
}

// sweep leases a batch of due rows with FOR UPDATE SKIP LOCKED so multiple
// worker replicas never double-deliver the same row, dispatches each via
// Handler, and commits per-row success/failure in the same transaction
// that held the lease.
func (w *Worker) sweep(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, organization_id, aggregate_id, aggregate_type, event_type, payload,
		       occurred_at, created_at, available_at, attempts, COALESCE(last_error, '')
		FROM outbox_events
		WHERE dispatched_at IS NULL
		  AND available_at <= now()
		  AND attempts < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, MaxAttempts, BatchSize)
	if err != nil {
		return err
	}

	var leased []Row
	var orgIDs []uuid.UUID
	for rows.Next() {
		var r Row
		var orgID uuid.UUID
		if err := rows.Scan(&r.ID, &orgID, &r.AggregateID, &r.AggregateType, &r.EventType,
			&r.Payload, &r.OccurredAt, &r.CreatedAt, &r.AvailableAt, &r.Attempts, &r.LastError); err != nil {
			rows.Close()
			return err
		}
		leased = append(leased, r)
		orgIDs = append(orgIDs, orgID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i, row := range leased {
		w.deliver(ctx, tx, row, orgIDs[i])
	}

	return tx.Commit(ctx)
}

func (w *Worker) deliver(ctx context.Context, tx pgx.Tx, row Row, orgID uuid.UUID) {
	err := w.handler(ctx, row)
	if err == nil {
		_, execErr := tx.Exec(ctx, `UPDATE outbox_events SET dispatched_at = now() WHERE id = $1`, row.ID)
		if execErr != nil {
			w.log.Error("outbox mark-dispatched failed", "event_id", row.ID, "error", execErr)
		}
		return
	}

	attempts := row.Attempts + 1
	backoff := backoffFor(attempts)
	_, execErr := tx.Exec(ctx, `
		UPDATE outbox_events
		SET attempts = $2, last_error = $3, available_at = now() + $4
		WHERE id = $1`,
		row.ID, attempts, err.Error(), backoff)
	if execErr != nil {
		w.log.Error("outbox reschedule failed", "event_id", row.ID, "error", execErr)
	}
	if attempts >= MaxAttempts {
		w.log.Error("outbox event parked after max attempts",
			"event_id", row.ID, "organization_id", orgID, "event_type", row.EventType, "error", err)
	} else if !errors.Is(err, context.Canceled) {
		w.log.Warn("outbox delivery failed, rescheduled", "event_id", row.ID, "attempts", attempts, "backoff", backoff)
	}
}

// backoffFor computes exponential backoff with a cap, 2^attempts seconds
// up to 1 hour.
func backoffFor(attempts int) time.Duration {
	seconds := math.Pow(2, float64(attempts))
	d := time.Duration(seconds) * time.Second
	if d > time.Hour {
		return time.Hour
	}
	return d
}
