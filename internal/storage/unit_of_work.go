package storage

import (
	"context"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/outbox"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork wraps a single pgx.Tx scoped to one tenant.Context. It is the
// generalized form of the teacher's WithTenantContext: instead of a single
// higher-order function, command handlers Begin a UoW, do their work
// against Tx(), Track any aggregates that raised events, and Commit —
// which drains every tracked aggregate's events into the outbox in the
// same transaction as the business mutation, per spec §4.3/§4.8.
type UnitOfWork struct {
	ctx     context.Context
	tx      pgx.Tx
	tenant  tenant.Context
	tracked []domain.TrackedAggregate
	done    bool
}

// Begin opens a transaction and applies the tenant session variable for
// RLS, unless tc is admin-scoped (outbox worker, audit writes, cross-tenant
// SuperAdmin operations), mirroring storage.WithoutRLS.
func Begin(ctx context.Context, pool *pgxpool.Pool, tc tenant.Context) (*UnitOfWork, error) {
	if !tc.Admin && !tc.HasTenant() {
		return nil, fmt.Errorf("storage: %w", domain.ErrTenantContextMissing)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: begin transaction: %w", err)
	}

	if tc.HasTenant() {
		if _, err := tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tc.TenantID.String()); err != nil {
			tx.Rollback(ctx)
			return nil, fmt.Errorf("storage: set tenant context: %w", err)
		}
	}

	return &UnitOfWork{ctx: ctx, tx: tx, tenant: tc}, nil
}

// Tx exposes the underlying transaction for repository calls.
func (u *UnitOfWork) Tx() pgx.Tx { return u.tx }

// Tenant returns the tenant context this UoW was opened with.
func (u *UnitOfWork) Tenant() tenant.Context { return u.tenant }

// Track registers an aggregate whose pending events must be drained into
// the outbox at Commit. Safe to call more than once per aggregate;
// DrainEvents is idempotent.
func (u *UnitOfWork) Track(agg domain.TrackedAggregate) {
	u.tracked = append(u.tracked, agg)
}

// Commit drains every tracked aggregate's events into the outbox and
// commits the transaction. The outbox write and the business mutation
// share this single pgx.Tx, so either both land or neither does.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return fmt.Errorf("storage: UnitOfWork already closed")
	}
	u.done = true

	var events []domain.Event
	for _, agg := range u.tracked {
		events = append(events, agg.DrainEvents()...)
	}
	if len(events) > 0 {
		if err := outbox.Write(u.ctx, u.tx, u.tenant.TenantID, events); err != nil {
			u.tx.Rollback(u.ctx)
			return fmt.Errorf("storage: write outbox: %w", err)
		}
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("storage: commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit has already
// run (pgx no-ops a rollback on a finished tx) and safe to defer
// unconditionally right after Begin.
func (u *UnitOfWork) Rollback() {
	if u.done {
		return
	}
	u.done = true
	u.tx.Rollback(u.ctx)
}

// WithUnitOfWork is a convenience wrapper for the common Begin/defer
// Rollback/fn/Commit sequence, mirroring the teacher's WithTenantContext
// call shape for handlers that don't need to hold the UoW across calls.
func WithUnitOfWork(ctx context.Context, pool *pgxpool.Pool, tc tenant.Context, fn func(uow *UnitOfWork) error) error {
	uow, err := Begin(ctx, pool, tc)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

// WithoutRLS runs fn in a transaction with no tenant session variable set,
// for system-level operations (outbox worker delivery side-effects,
// cross-tenant reads) that must bypass row isolation entirely.
func WithoutRLS(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit transaction: %w", err)
	}
	return nil
}
