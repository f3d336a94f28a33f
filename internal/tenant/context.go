// Package tenant carries the request-scoped identity bundle — tenant,
// user, roles, request id — that the storage layer applies to the
// database session for row-level isolation.
package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Context is the {tenant_id, user_id, roles, request_id} bundle threaded
// through command handlers. It is a plain value, not a global: callers
// that need it across an async boundary pass it explicitly or stash it on
// context.Context via WithContext/FromContext at the handler/middleware
// seam.
type Context struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Roles     []string
	RequestID string

	// Admin marks a session that is permitted to omit TenantID (e.g. the
	// outbox worker, cross-tenant SuperAdmin operations, audit writes).
	Admin bool
}

// HasTenant reports whether a concrete tenant is set.
func (c Context) HasTenant() bool {
	return c.TenantID != uuid.Nil
}

// HasRole reports whether the bundle includes the given role name.
func (c Context) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// WithContext returns a new context.Context carrying tc.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the tenant Context previously stored by WithContext.
func FromContext(ctx context.Context) (Context, error) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return Context{}, fmt.Errorf("tenant: context not present")
	}
	tc, ok := val.(Context)
	if !ok {
		return Context{}, fmt.Errorf("tenant: context has wrong type %T", val)
	}
	return tc, nil
}

// Admin returns a Context flagged to bypass tenant isolation, for system
// operations such as the outbox worker or audit writes.
func Admin(requestID string) Context {
	return Context{Admin: true, RequestID: requestID}
}
