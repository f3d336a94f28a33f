package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenTTL is the lifetime of a freshly issued refresh token.
const RefreshTokenTTL = 7 * 24 * time.Hour

// RefreshToken is a single-use-per-rotation session token. Only its SHA-256
// hash is ever stored; the plaintext is returned to the client once, at
// issuance or rotation, and never persisted.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FamilyID  uuid.UUID
	ParentID  *uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// NewRefreshTokenFamily creates the root token of a new family, as issued
// at login.
func NewRefreshTokenFamily(userID uuid.UUID, tokenHash string, now time.Time) *RefreshToken {
	return &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		FamilyID:  uuid.New(),
		TokenHash: tokenHash,
		ExpiresAt: now.Add(RefreshTokenTTL),
		CreatedAt: now,
	}
}

// Rotate produces the next token in t's family.
func (t *RefreshToken) Rotate(newTokenHash string, now time.Time) *RefreshToken {
	parent := t.ID
	return &RefreshToken{
		ID:        uuid.New(),
		UserID:    t.UserID,
		FamilyID:  t.FamilyID,
		ParentID:  &parent,
		TokenHash: newTokenHash,
		ExpiresAt: now.Add(RefreshTokenTTL),
		CreatedAt: now,
	}
}

// IsValid reports whether the token is usable: not expired, not revoked.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Revoke marks the token revoked at `now`.
func (t *RefreshToken) Revoke(now time.Time) {
	if t.RevokedAt == nil {
		t.RevokedAt = &now
	}
}

// singleUse is embedded by EmailVerificationToken and PasswordResetToken,
// both of which share RefreshToken's shape plus a used_at marker.
type singleUse struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Verify implements the spec §4.7 check sequence, common to both
// single-use token kinds. It does not itself mark the token used — callers
// must call MarkUsed atomically with the side effect it gates, in the same
// transaction.
func (s *singleUse) Verify(now time.Time) error {
	if s.UsedAt != nil {
		return fmt.Errorf("%w", ErrTokenAlreadyUsed)
	}
	if !now.Before(s.ExpiresAt) {
		return fmt.Errorf("%w", ErrTokenExpired)
	}
	return nil
}

// MarkUsed stamps UsedAt. Calling it twice is a programmer error the
// repository layer prevents via a conditional UPDATE (WHERE used_at IS NULL).
func (s *singleUse) MarkUsed(now time.Time) {
	s.UsedAt = &now
}

// EmailVerificationToken gates User.VerifyEmail.
type EmailVerificationToken struct {
	singleUse
}

func NewEmailVerificationToken(userID uuid.UUID, tokenHash string, ttl time.Duration, now time.Time) *EmailVerificationToken {
	return &EmailVerificationToken{singleUse{
		ID: uuid.New(), UserID: userID, TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl), CreatedAt: now,
	}}
}

// NewEmailVerificationTokenFromRow reconstructs a token previously loaded
// from storage; the repository is the only caller (it owns the row shape).
func NewEmailVerificationTokenFromRow(id, userID uuid.UUID, tokenHash string, expiresAt time.Time, usedAt *time.Time, createdAt time.Time) *EmailVerificationToken {
	return &EmailVerificationToken{singleUse{
		ID: id, UserID: userID, TokenHash: tokenHash,
		ExpiresAt: expiresAt, UsedAt: usedAt, CreatedAt: createdAt,
	}}
}

// PasswordResetToken gates a password change; on success the handler also
// revokes all refresh tokens per spec §4.7.
type PasswordResetToken struct {
	singleUse
}

func NewPasswordResetToken(userID uuid.UUID, tokenHash string, ttl time.Duration, now time.Time) *PasswordResetToken {
	return &PasswordResetToken{singleUse{
		ID: uuid.New(), UserID: userID, TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl), CreatedAt: now,
	}}
}

// NewPasswordResetTokenFromRow reconstructs a token previously loaded from
// storage; the repository is the only caller.
func NewPasswordResetTokenFromRow(id, userID uuid.UUID, tokenHash string, expiresAt time.Time, usedAt *time.Time, createdAt time.Time) *PasswordResetToken {
	return &PasswordResetToken{singleUse{
		ID: id, UserID: userID, TokenHash: tokenHash,
		ExpiresAt: expiresAt, UsedAt: usedAt, CreatedAt: createdAt,
	}}
}

// ApiKey is a long-lived machine credential. Only key_prefix is stored in
// clear (for lookup); the full key is hashed.
type ApiKey struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         *uuid.UUID
	Name           string
	KeyHash        string
	KeyPrefix      string
	Permissions    PermissionSet
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	IsActive       bool
	RevokedAt      *time.Time
	CreatedAt      time.Time
}

// IsValid reports whether the key may currently authenticate a request.
func (k *ApiKey) IsValid(now time.Time) error {
	if k.RevokedAt != nil {
		return fmt.Errorf("%w", ErrAPIKeyRevoked)
	}
	if !k.IsActive {
		return fmt.Errorf("%w", ErrAPIKeyRevoked)
	}
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return fmt.Errorf("%w", ErrAPIKeyExpired)
	}
	return nil
}
