package auth

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
)

// LoginInput defines the credentials for login. Email is unique globally
// (spec §3 User entity), so the tenant is resolved from the matching user
// record rather than supplied by the caller (spec §4.4 steps 1-3).
type LoginInput struct {
	Email     string
	Password  string
	IP        net.IP
	UserAgent string
}

// LoginResult carries the tokens returned to the client.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

// Login verifies credentials, applies the lockout state machine (spec
// §4.4), and issues a fresh access/refresh token pair rooting a new
// refresh-token family.
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	resolved, err := s.resolveUserByEmail(ctx, input.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	orgID := resolved.OrganizationID

	var result *LoginResult
	var loginErr error
	now := time.Now().UTC()

	err = storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		user, err := s.users.GetByID(ctx, uow, resolved.ID)
		if err != nil {
			return domain.ErrInvalidCredentials
		}

		if user.IsLocked(now) {
			s.audit.Log(ctx, domain.AuditUserLocked, &orgID, &user.ID, nil)
			return domain.ErrAccountLocked
		}

		if cmpErr := s.hasher.Compare(user.PasswordHash.String(), input.Password); cmpErr != nil {
			user.RegisterFailedLogin(now)
			if upErr := s.users.UpdateLoginState(ctx, uow, user); upErr != nil {
				return upErr
			}
			uow.Track(user)
			s.audit.Log(ctx, domain.AuditLoginFailed, &orgID, &user.ID, nil)
			// Returning nil commits the incremented counter (and any lockout);
			// the credential error is reported once the commit has run.
			loginErr = domain.ErrInvalidCredentials
			return nil
		}

		user.RegisterSuccessfulLogin(now)
		if err := s.users.UpdateLoginState(ctx, uow, user); err != nil {
			return err
		}
		uow.Track(user)

		roleNames, permissions, err := s.effectivePermissions(ctx, uow, user.ID)
		if err != nil {
			return err
		}

		accessToken, err := s.tokens.GenerateAccessToken(user.ID, orgID, roleNames, permissions)
		if err != nil {
			return fmt.Errorf("auth: generate access token: %w", err)
		}

		rawRefresh, err := GenerateSecureToken(64)
		if err != nil {
			return err
		}
		refreshToken := domain.NewRefreshTokenFamily(user.ID, HashToken(rawRefresh), now)
		if err := s.refreshTokens.Add(ctx, uow, refreshToken); err != nil {
			return err
		}

		result = &LoginResult{AccessToken: accessToken, RefreshToken: rawRefresh, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loginErr != nil {
		return nil, loginErr
	}

	s.audit.Log(ctx, domain.AuditLoginSuccess, &orgID, &result.User.ID, map[string]any{
		"ip": input.IP.String(),
	})
	return result, nil
}

// refreshGracePeriod treats a replay of a token revoked less than this long
// ago as a likely concurrent-request race rather than an attack: the family
// is still revoked, but no UnauthorizedAccess audit entry is written
// (SPEC_FULL.md §13, grounded on the teacher's RefreshSession).
const refreshGracePeriod = 10 * time.Second

// RefreshSession rotates a refresh token. Presenting an already revoked
// token revokes the entire family (spec §4.5); outside the grace window the
// reuse is also audited as unauthorized access. The revocation commits
// before the token_revoked error is returned.
func (s *Service) RefreshSession(ctx context.Context, orgID uuid.UUID, rawToken string) (*LoginResult, error) {
	now := time.Now().UTC()
	hashed := HashToken(rawToken)

	var result *LoginResult
	var reuseErr error
	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		token, err := s.refreshTokens.GetByHash(ctx, uow, hashed)
		if err != nil {
			return domain.ErrInvalidCredentials
		}

		if token.RevokedAt != nil {
			if err := s.refreshTokens.RevokeFamily(ctx, uow, token.FamilyID, now); err != nil {
				return err
			}
			reuseErr = domain.ErrTokenRevoked
			if now.Sub(*token.RevokedAt) >= refreshGracePeriod {
				s.audit.Log(ctx, domain.AuditUnauthorizedAccess, &orgID, &token.UserID, map[string]any{
					"reason": "refresh_token_reuse", "family_id": token.FamilyID,
				})
				reuseErr = fmt.Errorf("%w: refresh token reuse detected", domain.ErrTokenRevoked)
			}
			return nil
		}

		if !token.IsValid(now) {
			return domain.ErrTokenExpired
		}

		if err := s.refreshTokens.Revoke(ctx, uow, token.ID, now); err != nil {
			return err
		}

		rawNew, err := GenerateSecureToken(64)
		if err != nil {
			return err
		}
		rotated := token.Rotate(HashToken(rawNew), now)
		if err := s.refreshTokens.Add(ctx, uow, rotated); err != nil {
			return err
		}

		user, err := s.users.GetByID(ctx, uow, token.UserID)
		if err != nil {
			return domain.ErrNotFound
		}

		roleNames, permissions, err := s.effectivePermissions(ctx, uow, user.ID)
		if err != nil {
			return err
		}

		accessToken, err := s.tokens.GenerateAccessToken(user.ID, orgID, roleNames, permissions)
		if err != nil {
			return fmt.Errorf("auth: generate access token: %w", err)
		}

		result = &LoginResult{AccessToken: accessToken, RefreshToken: rawNew, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reuseErr != nil {
		return nil, reuseErr
	}

	s.audit.Log(ctx, domain.AuditTokenRefreshed, &orgID, &result.User.ID, nil)
	return result, nil
}

// Logout revokes the entire refresh token family the given token belongs
// to, ending the session on every device sharing it.
func (s *Service) Logout(ctx context.Context, orgID uuid.UUID, rawToken string) error {
	hashed := HashToken(rawToken)
	now := time.Now().UTC()

	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		token, err := s.refreshTokens.GetByHash(ctx, uow, hashed)
		if err != nil {
			return nil // idempotent: an unknown token is already logged out
		}
		return s.refreshTokens.RevokeFamily(ctx, uow, token.FamilyID, now)
	})
}

// ListSessions returns every active refresh token (session) for a user.
func (s *Service) ListSessions(ctx context.Context, orgID, userID uuid.UUID) ([]*domain.RefreshToken, error) {
	var out []*domain.RefreshToken
	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		var err error
		out, err = s.refreshTokens.ListActiveForUser(ctx, uow, userID, time.Now().UTC())
		return err
	})
	return out, err
}

// RevokeSession revokes a single session (one refresh token) by ID.
func (s *Service) RevokeSession(ctx context.Context, orgID, sessionID uuid.UUID) error {
	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		return s.refreshTokens.Revoke(ctx, uow, sessionID, time.Now().UTC())
	})
}
