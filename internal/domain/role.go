package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemRoleNames are the immutable built-in roles per spec §3.
var SystemRoleNames = map[string]bool{
	"OwnerAdmin":    true,
	"ResellerAdmin": true,
	"TenantAdmin":   true,
	"Agent":         true,
	"ReadOnly":      true,
}

// Role is a named bundle of permissions scoped to an organization (system
// roles carry a nil OrganizationID and are shared, matching "is_system").
type Role struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Description    string
	Permissions    PermissionSet
	IsSystem       bool
}

// NewRole creates a role for an organization. The role is marked IsSystem
// when name is one of SystemRoleNames, and is a custom role otherwise.
func NewRole(orgID uuid.UUID, name, description string, permissions PermissionSet) *Role {
	return &Role{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Description:    description,
		Permissions:    permissions,
		IsSystem:       SystemRoleNames[name],
	}
}

// Rename changes the role's name. Forbidden for system roles.
func (r *Role) Rename(name string) error {
	if r.IsSystem {
		return fmt.Errorf("%w: system roles are immutable", ErrPermissionDenied)
	}
	r.Name = name
	return nil
}

// SetPermissions replaces the role's permission set. Forbidden for system roles.
func (r *Role) SetPermissions(permissions PermissionSet) error {
	if r.IsSystem {
		return fmt.Errorf("%w: system roles are immutable", ErrPermissionDenied)
	}
	r.Permissions = permissions
	return nil
}

// SetDescription updates the description. Forbidden for system roles —
// spec.md forbids ANY modification to system roles; we do not carve out
// an exception for description-only edits (see DESIGN.md Open Question 2).
func (r *Role) SetDescription(desc string) error {
	if r.IsSystem {
		return fmt.Errorf("%w: system roles are immutable", ErrPermissionDenied)
	}
	r.Description = desc
	return nil
}

// UserRole is the join row assigning a Role to a User.
type UserRole struct {
	UserID    uuid.UUID
	RoleID    uuid.UUID
	GrantedAt time.Time
	GrantedBy uuid.UUID
}

// NewUserRole creates a grant record.
func NewUserRole(userID, roleID, grantedBy uuid.UUID) UserRole {
	return UserRole{UserID: userID, RoleID: roleID, GrantedAt: time.Now().UTC(), GrantedBy: grantedBy}
}

// EffectivePermissions computes the union of permissions across all of a
// user's assigned roles, per spec §4.6.
func EffectivePermissions(roles []*Role) PermissionSet {
	out := PermissionSet{}
	for _, r := range roles {
		out = out.Union(r.Permissions)
	}
	return out
}
