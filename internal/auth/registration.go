package auth

import (
	"context"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
)

// RegisterInput defines the data needed to register a new user. The
// organization must already exist (provisioned separately via
// Service.CreateOrganization) — Register only ever joins an existing
// tenant, it never creates one.
type RegisterInput struct {
	OrganizationSlug string
	Email            string
	Password         string
	FullName         string
}

// Register creates a new user within an existing organization. Public
// registration can be disabled tenant-wide via Config.AllowPublicRegistration.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if !s.config.AllowPublicRegistration {
		return nil, ErrPublicRegistrationDisabled
	}

	org, err := s.resolveOrganization(ctx, input.OrganizationSlug)
	if err != nil {
		return nil, err
	}

	email, err := domain.NewEmail(input.Email)
	if err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	var user *domain.User
	err = storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: org.ID}, func(uow *storage.UnitOfWork) error {
		if existing, _ := s.users.GetByEmail(ctx, uow, email.String()); existing != nil {
			return domain.ErrDuplicateEmail
		}

		user = domain.NewUser(org.ID, email, domain.NewPasswordHash(hashed), input.FullName)
		if err := s.users.Add(ctx, uow, user); err != nil {
			return err
		}
		uow.Track(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditAction("user.create.public"), &org.ID, &user.ID, map[string]any{
		"method": "public_registration",
	})

	return user, nil
}
