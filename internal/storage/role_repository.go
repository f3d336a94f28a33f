package storage

import (
	"context"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type roleRow struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	Name           string
	Description    string
	Permissions    []string
	IsSystem       bool
}

// RoleRepository persists domain.Role.
type RoleRepository struct {
	*Repository[*domain.Role, roleRow]
}

func NewRoleRepository() *RoleRepository {
	return &RoleRepository{NewRepository(
		"roles",
		roleToRow,
		roleFromRow,
		scanRoleRow,
		[]string{"id", "organization_id", "name", "description", "permissions", "is_system"},
		func(r roleRow) []any { return []any{r.ID, r.OrganizationID, r.Name, r.Description, r.Permissions, r.IsSystem} },
		true,
	)}
}

func roleToRow(r *domain.Role) roleRow {
	return roleRow{
		ID: pgUUID(r.ID), OrganizationID: pgUUID(r.OrganizationID), Name: r.Name,
		Description: r.Description, Permissions: r.Permissions.Slice(), IsSystem: r.IsSystem,
	}
}

func roleFromRow(r roleRow) *domain.Role {
	return &domain.Role{
		ID: fromPgUUID(r.ID), OrganizationID: fromPgUUID(r.OrganizationID), Name: r.Name,
		Description: r.Description, Permissions: domain.NewPermissionSet(r.Permissions...), IsSystem: r.IsSystem,
	}
}

func scanRoleRow(row pgx.Row) (roleRow, error) {
	var r roleRow
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Description, &r.Permissions, &r.IsSystem)
	return r, err
}

// GetByName looks a role up within the current tenant by name (system
// roles are visible to every tenant via a NULL organization_id union,
// enforced at the SQL layer by the caller's whereSQL).
func (r *RoleRepository) GetByName(ctx context.Context, uow *UnitOfWork, name string) (*domain.Role, error) {
	return r.FindOne(ctx, uow, "name = $1 AND (organization_id = $2 OR is_system)", name, pgUUID(uow.Tenant().TenantID))
}

// ListForUser returns every role assigned to a user, via the user_roles
// join table.
func (r *RoleRepository) ListForUser(ctx context.Context, uow *UnitOfWork, userID uuid.UUID) ([]*domain.Role, error) {
	var out []*domain.Role
	err := r.QueryRaw(ctx, uow, `
		SELECT r.id, r.organization_id, r.name, r.description, r.permissions, r.is_system
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, func(rows pgx.Rows) error {
		for rows.Next() {
			row, err := scanRoleRow(rows)
			if err != nil {
				return err
			}
			out = append(out, roleFromRow(row))
		}
		return rows.Err()
	}, userID)
	return out, err
}

// UserRoleRepository manages role grants (the users <-> roles join table).
type UserRoleRepository struct{}

func NewUserRoleRepository() *UserRoleRepository { return &UserRoleRepository{} }

// Grant records a role assignment.
func (r *UserRoleRepository) Grant(ctx context.Context, uow *UnitOfWork, ur domain.UserRole) error {
	_, err := uow.Tx().Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, granted_at, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		ur.UserID, ur.RoleID, ur.GrantedAt, ur.GrantedBy)
	return NewStorageError("Grant:user_roles", err)
}

// Revoke removes a role assignment.
func (r *UserRoleRepository) Revoke(ctx context.Context, uow *UnitOfWork, userID, roleID uuid.UUID) error {
	tag, err := uow.Tx().Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return NewStorageError("Revoke:user_roles", err)
	}
	if tag.RowsAffected() == 0 {
		return NewStorageError("Revoke:user_roles", domain.ErrNotFound)
	}
	return nil
}
