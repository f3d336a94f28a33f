package storage

import (
	"context"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type userRow struct {
	ID                  pgtype.UUID
	OrganizationID      pgtype.UUID
	Email               string
	Phone               pgtype.Text
	PasswordHash        string
	FullName            string
	IsActive            bool
	EmailVerified       bool
	PhoneVerified       bool
	LastLoginAt         pgtype.Timestamptz
	FailedLoginAttempts int
	LockedUntil         pgtype.Timestamptz
	CreatedAt           pgtype.Timestamptz
}

// UserRepository persists domain.User, tenant-scoped by organization_id.
type UserRepository struct {
	*Repository[*domain.User, userRow]
}

func NewUserRepository() *UserRepository {
	return &UserRepository{NewRepository(
		"users",
		userToRow,
		userFromRow,
		scanUserRow,
		[]string{"id", "organization_id", "email", "phone", "password_hash", "full_name",
			"is_active", "email_verified", "phone_verified", "failed_login_attempts", "created_at"},
		func(r userRow) []any {
			return []any{r.ID, r.OrganizationID, r.Email, r.Phone, r.PasswordHash, r.FullName,
				r.IsActive, r.EmailVerified, r.PhoneVerified, r.FailedLoginAttempts, r.CreatedAt}
		},
		true,
	)}
}

func userToRow(u *domain.User) userRow {
	var phone pgtype.Text
	if u.Phone != nil {
		phone = pgText(u.Phone.String())
	}
	return userRow{
		ID:                  pgUUID(u.ID),
		OrganizationID:      pgUUID(u.OrganizationID),
		Email:               u.Email.String(),
		Phone:               phone,
		PasswordHash:        u.PasswordHash.String(),
		FullName:            u.FullName,
		IsActive:            u.IsActive,
		EmailVerified:       u.EmailVerified,
		PhoneVerified:       u.PhoneVerified,
		LastLoginAt:         pgTimePtr(u.LastLoginAt),
		FailedLoginAttempts: u.FailedLoginAttempts,
		LockedUntil:         pgTimePtr(u.LockedUntil),
		CreatedAt:           pgTime(u.CreatedAt),
	}
}

func userFromRow(r userRow) *domain.User {
	email, _ := domain.NewEmail(r.Email)
	var phone *domain.Phone
	if r.Phone.Valid {
		if p, err := domain.NewPhone(r.Phone.String); err == nil {
			phone = &p
		}
	}
	return &domain.User{
		ID:                  fromPgUUID(r.ID),
		OrganizationID:      fromPgUUID(r.OrganizationID),
		Email:               email,
		Phone:               phone,
		PasswordHash:        domain.NewPasswordHash(r.PasswordHash),
		FullName:            r.FullName,
		IsActive:            r.IsActive,
		EmailVerified:       r.EmailVerified,
		PhoneVerified:       r.PhoneVerified,
		LastLoginAt:         fromPgTimePtr(r.LastLoginAt),
		FailedLoginAttempts: r.FailedLoginAttempts,
		LockedUntil:         fromPgTimePtr(r.LockedUntil),
		CreatedAt:           fromPgTime(r.CreatedAt),
		Metadata:            map[string]string{},
	}
}

func scanUserRow(row pgx.Row) (userRow, error) {
	var r userRow
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Email, &r.Phone, &r.PasswordHash, &r.FullName,
		&r.IsActive, &r.EmailVerified, &r.PhoneVerified, &r.LastLoginAt, &r.FailedLoginAttempts,
		&r.LockedUntil, &r.CreatedAt)
	return r, err
}

// GetByEmail looks a user up within the current tenant by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, uow *UnitOfWork, email string) (*domain.User, error) {
	return r.FindOne(ctx, uow, "email = $1", email)
}

// GetByEmailAnyTenant looks a user up across all tenants (login resolves
// the tenant from the credential first); requires an admin-scoped UoW.
func (r *UserRepository) GetByEmailAnyTenant(ctx context.Context, uow *UnitOfWork, email string) (*domain.User, error) {
	return r.FindOne(ctx, uow, "email = $1", email)
}

// UpdateLoginState persists the lockout/last-login fields mutated by
// RegisterFailedLogin/RegisterSuccessfulLogin.
func (r *UserRepository) UpdateLoginState(ctx context.Context, uow *UnitOfWork, u *domain.User) error {
	return r.Update(ctx, uow, u.ID,
		"failed_login_attempts = $2, locked_until = $3, last_login_at = $4",
		u.FailedLoginAttempts, pgTimePtr(u.LockedUntil), pgTimePtr(u.LastLoginAt))
}

// UpdatePassword persists a new password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, uow *UnitOfWork, u *domain.User) error {
	return r.Update(ctx, uow, u.ID, "password_hash = $2, failed_login_attempts = $3, locked_until = $4",
		u.PasswordHash.String(), u.FailedLoginAttempts, pgTimePtr(u.LockedUntil))
}

// MarkEmailVerified persists User.VerifyEmail's effect.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, uow *UnitOfWork, id uuid.UUID) error {
	return r.Update(ctx, uow, id, "email_verified = true")
}
