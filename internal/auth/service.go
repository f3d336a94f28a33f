package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/audit"
	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/notify"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrOrganizationRequired       = errors.New("organization is required")
	ErrPublicRegistrationDisabled = errors.New("public registration is disabled")
)

// Config holds identity-service-wide settings.
type Config struct {
	AllowPublicRegistration bool
	DefaultAppURL           string
}

// Service orchestrates the identity command/query operations — login,
// registration, session rotation, password/email recovery, RBAC
// assignment — matching the teacher's AuthService shape but generalized to
// run every operation inside a tenant-scoped storage.UnitOfWork instead of
// holding a single shared db.Queries handle.
type Service struct {
	config Config
	pool   *pgxpool.Pool

	orgs            *storage.OrganizationRepository
	users           *storage.UserRepository
	roles           *storage.RoleRepository
	userRoles       *storage.UserRoleRepository
	refreshTokens   *storage.RefreshTokenRepository
	singleUseTokens *storage.SingleUseTokenRepository

	hasher PasswordHasher
	tokens TokenProvider
	audit  audit.Service
	mail   notify.EmailSender
}

func NewService(
	config Config,
	pool *pgxpool.Pool,
	hasher PasswordHasher,
	tokens TokenProvider,
	auditSvc audit.Service,
	mail notify.EmailSender,
) *Service {
	return &Service{
		config:          config,
		pool:            pool,
		orgs:            storage.NewOrganizationRepository(),
		users:           storage.NewUserRepository(),
		roles:           storage.NewRoleRepository(),
		userRoles:       storage.NewUserRoleRepository(),
		refreshTokens:   storage.NewRefreshTokenRepository(),
		singleUseTokens: storage.NewSingleUseTokenRepository(),
		hasher:          hasher,
		tokens:          tokens,
		audit:           auditSvc,
		mail:            mail,
	}
}

// resolveOrganization looks an organization up by slug, in an admin-scoped
// UoW since the caller does not yet have a tenant context to scope by.
func (s *Service) resolveOrganization(ctx context.Context, slug string) (*domain.Organization, error) {
	if slug == "" {
		return nil, ErrOrganizationRequired
	}

	uow, err := storage.Begin(ctx, s.pool, tenant.Admin("resolve-org"))
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	org, err := s.orgs.GetBySlug(ctx, uow, slug)
	if err != nil {
		return nil, fmt.Errorf("%w: organization not found", domain.ErrNotFound)
	}
	if !org.IsActive || org.IsDeleted() {
		return nil, fmt.Errorf("%w: organization not found", domain.ErrNotFound)
	}
	return org, nil
}

// resolveUserByEmail looks a user up by email across every tenant, in an
// admin-scoped UoW, since a login request arrives with no tenant context of
// its own and email is unique globally (spec §4.4 steps 1-3) — mirroring
// messaging.resolveChannelByPhoneNumberID's cross-tenant resolution.
func (s *Service) resolveUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	uow, err := storage.Begin(ctx, s.pool, tenant.Admin("resolve-user-by-email"))
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := s.users.GetByEmailAnyTenant(ctx, uow, email)
	if err != nil {
		return nil, fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}
	return user, nil
}

// effectivePermissions loads every role assigned to userID within the
// current UoW's tenant and returns the deduplicated role-name/permission
// union the token service embeds in the access token, per spec §4.5/§4.6.
func (s *Service) effectivePermissions(ctx context.Context, uow *storage.UnitOfWork, userID uuid.UUID) ([]string, []string, error) {
	roles, err := s.roles.ListForUser(ctx, uow, userID)
	if err != nil {
		return nil, nil, err
	}
	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, r.Name)
	}
	return roleNames, domain.EffectivePermissions(roles).Slice(), nil
}
