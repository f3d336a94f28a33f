package auth

import (
	"context"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
)

const (
	passwordResetTTL     = 15 * time.Minute
	emailVerificationTTL = 24 * time.Hour
)

// RequestPasswordReset issues a reset token and emails it. An unknown email
// returns nil rather than an error — "silence is golden", the teacher's
// rule against leaking which addresses are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, orgID uuid.UUID, email string) error {
	var raw string
	var recipient string

	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		user, err := s.users.GetByEmail(ctx, uow, email)
		if err != nil {
			return nil
		}

		raw, err = GenerateSecureToken(32)
		if err != nil {
			return err
		}
		tok := domain.NewPasswordResetToken(user.ID, HashToken(raw), passwordResetTTL, time.Now().UTC())
		if err := s.singleUseTokens.AddPasswordReset(ctx, uow, tok); err != nil {
			return err
		}
		recipient = user.Email.String()
		return nil
	})
	if err != nil || raw == "" {
		return err
	}

	appURL := s.config.DefaultAppURL
	return s.mail.SendPasswordReset(ctx, recipient, raw, appURL)
}

// ResetPassword verifies the raw token, updates the password, and revokes
// every active refresh token for the user — spec §4.7's "nuclear option".
func (s *Service) ResetPassword(ctx context.Context, orgID uuid.UUID, rawToken, newPassword string) error {
	hashed := HashToken(rawToken)
	now := time.Now().UTC()

	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		tok, err := s.singleUseTokens.GetPasswordResetByHash(ctx, uow, hashed)
		if err != nil {
			return domain.ErrTokenInvalid
		}
		if verr := tok.Verify(now); verr != nil {
			return verr
		}

		newHash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}

		user, err := s.users.GetByID(ctx, uow, tok.UserID)
		if err != nil {
			return err
		}
		user.ChangePassword(domain.NewPasswordHash(newHash))
		if err := s.users.UpdatePassword(ctx, uow, user); err != nil {
			return err
		}
		uow.Track(user)

		if err := s.singleUseTokens.MarkUsed(ctx, uow, tok.ID, now); err != nil {
			return err
		}
		return s.refreshTokens.RevokeAllForUser(ctx, uow, user.ID, now)
	})
}

// RequestEmailVerification issues a verification token and emails it.
func (s *Service) RequestEmailVerification(ctx context.Context, orgID uuid.UUID, email string) error {
	var raw, recipient string

	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		user, err := s.users.GetByEmail(ctx, uow, email)
		if err != nil || user.EmailVerified {
			return nil
		}

		raw, err = GenerateSecureToken(32)
		if err != nil {
			return err
		}
		tok := domain.NewEmailVerificationToken(user.ID, HashToken(raw), emailVerificationTTL, time.Now().UTC())
		if err := s.singleUseTokens.AddEmailVerification(ctx, uow, tok); err != nil {
			return err
		}
		recipient = user.Email.String()
		return nil
	})
	if err != nil || raw == "" {
		return err
	}

	return s.mail.SendVerification(ctx, recipient, raw, s.config.DefaultAppURL)
}

// VerifyEmail marks the user's address verified once the token checks out.
func (s *Service) VerifyEmail(ctx context.Context, orgID uuid.UUID, rawToken string) error {
	hashed := HashToken(rawToken)
	now := time.Now().UTC()

	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		tok, err := s.singleUseTokens.GetEmailVerificationByHash(ctx, uow, hashed)
		if err != nil {
			return domain.ErrTokenInvalid
		}
		if verr := tok.Verify(now); verr != nil {
			return verr
		}

		if err := s.users.MarkEmailVerified(ctx, uow, tok.UserID); err != nil {
			return err
		}
		return s.singleUseTokens.MarkUsed(ctx, uow, tok.ID, now)
	})
}
