package auth

import (
	"context"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
)

// AssignRole grants roleName to targetUserID, enforcing spec §4.6's
// management hierarchy: the acting user's highest system role must
// CanManage every system role the target currently holds (and the role
// being granted), so an Agent can never escalate a peer to TenantAdmin.
func (s *Service) AssignRole(ctx context.Context, orgID, actingUserID, targetUserID uuid.UUID, roleName string) error {
	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		role, err := s.roles.GetByName(ctx, uow, roleName)
		if err != nil {
			return fmt.Errorf("%w: role %q not found", domain.ErrNotFound, roleName)
		}

		if err := s.requireCanManage(ctx, uow, actingUserID, domain.RoleName(roleName)); err != nil {
			return err
		}
		targetRoles, err := s.roles.ListForUser(ctx, uow, targetUserID)
		if err != nil {
			return err
		}
		for _, r := range targetRoles {
			if !r.IsSystem {
				continue
			}
			if err := s.requireCanManage(ctx, uow, actingUserID, domain.RoleName(r.Name)); err != nil {
				return err
			}
		}

		grant := domain.NewUserRole(targetUserID, role.ID, actingUserID)
		if err := s.userRoles.Grant(ctx, uow, grant); err != nil {
			return err
		}

		uow.Track(&roleEventAggregate{event: domain.NewRoleAssigned(targetUserID, orgID, role.ID, actingUserID)})
		return nil
	})
}

// RevokeRole removes roleName from targetUserID, subject to the same
// management-hierarchy check as AssignRole.
func (s *Service) RevokeRole(ctx context.Context, orgID, actingUserID, targetUserID uuid.UUID, roleName string) error {
	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		role, err := s.roles.GetByName(ctx, uow, roleName)
		if err != nil {
			return fmt.Errorf("%w: role %q not found", domain.ErrNotFound, roleName)
		}

		if err := s.requireCanManage(ctx, uow, actingUserID, domain.RoleName(roleName)); err != nil {
			return err
		}
		targetRoles, err := s.roles.ListForUser(ctx, uow, targetUserID)
		if err != nil {
			return err
		}
		for _, r := range targetRoles {
			if !r.IsSystem {
				continue
			}
			if err := s.requireCanManage(ctx, uow, actingUserID, domain.RoleName(r.Name)); err != nil {
				return err
			}
		}

		if err := s.userRoles.Revoke(ctx, uow, targetUserID, role.ID); err != nil {
			return err
		}

		uow.Track(&roleEventAggregate{event: domain.NewRoleRevoked(targetUserID, orgID, role.ID, actingUserID)})
		return nil
	})
}

// requireCanManage loads the acting user's roles and checks that at least
// one outranks b in the system hierarchy. Custom, non-hierarchy roles
// always fail CanManage (domain.CanManage returns false for unknown
// RoleNames), so only the five system roles participate in this check.
func (s *Service) requireCanManage(ctx context.Context, uow *storage.UnitOfWork, actingUserID uuid.UUID, b domain.RoleName) error {
	actingRoles, err := s.roles.ListForUser(ctx, uow, actingUserID)
	if err != nil {
		return err
	}
	for _, r := range actingRoles {
		if domain.CanManage(domain.RoleName(r.Name), b) {
			return nil
		}
	}
	return domain.ErrPermissionDenied
}

// roleEventAggregate is a throwaway TrackedAggregate wrapping a single
// already-raised event — AssignRole/RevokeRole operate on the user_roles
// join table directly rather than the User aggregate, so there is no
// natural aggregate instance to Raise against.
type roleEventAggregate struct {
	event domain.Event
}

func (a *roleEventAggregate) DrainEvents() []domain.Event {
	if a.event == nil {
		return nil
	}
	e := a.event
	a.event = nil
	return []domain.Event{e}
}
