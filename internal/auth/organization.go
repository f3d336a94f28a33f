package auth

import (
	"context"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
)

// CreateOrganizationInput defines the data needed to provision a new
// tenant (spec §3: "Created once", by an operator or self-service signup).
type CreateOrganizationInput struct {
	Name     string
	Slug     string
	Industry string
}

// CreateOrganization provisions a new tenant root. It runs in an
// admin-scoped UoW since no tenant yet exists to scope the write by —
// organizations are the tenant boundary itself, mirroring
// resolveOrganization's admin-scoped reads (OrganizationRepository is the
// one repository that is not tenant-scoped).
func (s *Service) CreateOrganization(ctx context.Context, input CreateOrganizationInput) (*domain.Organization, error) {
	org, err := domain.NewOrganization(input.Name, input.Slug, input.Industry)
	if err != nil {
		return nil, err
	}

	err = storage.WithUnitOfWork(ctx, s.pool, tenant.Admin("create-organization"), func(uow *storage.UnitOfWork) error {
		if existing, _ := s.orgs.GetBySlug(ctx, uow, org.Slug); existing != nil {
			return fmt.Errorf("%w: organization slug already in use", domain.ErrDuplicateSlug)
		}
		if err := s.orgs.Add(ctx, uow, org); err != nil {
			return err
		}
		uow.Track(org)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditAction("organization.create"), &org.ID, nil, map[string]any{
		"slug": org.Slug,
	})
	return org, nil
}
