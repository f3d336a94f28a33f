package storage

import (
	"context"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RefreshTokenRepository persists domain.RefreshToken rows, including the
// family/parent linkage spec §4.5's reuse-detection algorithm walks.
type RefreshTokenRepository struct{}

func NewRefreshTokenRepository() *RefreshTokenRepository { return &RefreshTokenRepository{} }

func (r *RefreshTokenRepository) Add(ctx context.Context, uow *UnitOfWork, t *domain.RefreshToken) error {
	_, err := uow.Tx().Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, family_id, parent_token_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.FamilyID, t.ParentID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return NewStorageError("Add:refresh_tokens", err)
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, uow *UnitOfWork, tokenHash string) (*domain.RefreshToken, error) {
	row := uow.Tx().QueryRow(ctx, `
		SELECT id, user_id, family_id, parent_token_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return scanRefreshToken(row)
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.FamilyID, &t.ParentID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Revoke marks a single token revoked.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, uow *UnitOfWork, id uuid.UUID, now time.Time) error {
	_, err := uow.Tx().Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, now)
	return NewStorageError("Revoke:refresh_tokens", err)
}

// RevokeFamily revokes every token in a family — the "nuclear option" spec
// §4.5 mandates on reuse detection.
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, uow *UnitOfWork, familyID uuid.UUID, now time.Time) error {
	_, err := uow.Tx().Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE family_id = $1 AND revoked_at IS NULL`, familyID, now)
	return NewStorageError("RevokeFamily:refresh_tokens", err)
}

// RevokeAllForUser revokes every active refresh token for a user, used on
// password change and account deactivation.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, uow *UnitOfWork, userID uuid.UUID, now time.Time) error {
	_, err := uow.Tx().Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, now)
	return NewStorageError("RevokeAllForUser:refresh_tokens", err)
}

// ListActiveForUser lists sessions (active refresh token families) for a
// user, for the "view/revoke my sessions" operation.
func (r *RefreshTokenRepository) ListActiveForUser(ctx context.Context, uow *UnitOfWork, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error) {
	rows, err := uow.Tx().Query(ctx, `
		SELECT id, user_id, family_id, parent_token_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, NewStorageError("ListActiveForUser:refresh_tokens", err)
	}
	defer rows.Close()

	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, NewStorageError("ListActiveForUser:refresh_tokens", err)
		}
		out = append(out, t)
	}
	return out, NewStorageError("ListActiveForUser:refresh_tokens", rows.Err())
}

// SingleUseTokenRepository persists email-verification and password-reset
// tokens, sharing one table keyed by `kind`.
type SingleUseTokenRepository struct{}

func NewSingleUseTokenRepository() *SingleUseTokenRepository { return &SingleUseTokenRepository{} }

const (
	singleUseKindEmailVerify  = "email_verify"
	singleUseKindPasswordReset = "password_reset"
)

type singleUseRow struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (r *SingleUseTokenRepository) insert(ctx context.Context, uow *UnitOfWork, kind string, id, userID uuid.UUID, tokenHash string, expiresAt, createdAt time.Time) error {
	_, err := uow.Tx().Exec(ctx, `
		INSERT INTO single_use_tokens (id, user_id, kind, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, id, userID, kind, tokenHash, expiresAt, createdAt)
	return NewStorageError("Add:single_use_tokens", err)
}

// AddEmailVerification persists a freshly issued email-verification token.
func (r *SingleUseTokenRepository) AddEmailVerification(ctx context.Context, uow *UnitOfWork, t *domain.EmailVerificationToken) error {
	return r.insert(ctx, uow, singleUseKindEmailVerify, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
}

// AddPasswordReset persists a freshly issued password-reset token.
func (r *SingleUseTokenRepository) AddPasswordReset(ctx context.Context, uow *UnitOfWork, t *domain.PasswordResetToken) error {
	return r.insert(ctx, uow, singleUseKindPasswordReset, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
}

func (r *SingleUseTokenRepository) getByHash(ctx context.Context, uow *UnitOfWork, kind, tokenHash string) (singleUseRow, error) {
	var row singleUseRow
	err := uow.Tx().QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM single_use_tokens WHERE kind = $1 AND token_hash = $2`, kind, tokenHash).
		Scan(&row.ID, &row.UserID, &row.TokenHash, &row.ExpiresAt, &row.UsedAt, &row.CreatedAt)
	return row, err
}

// GetEmailVerificationByHash looks up an unexpired-or-not email
// verification token row by its hash; the caller runs Verify/MarkUsed.
func (r *SingleUseTokenRepository) GetEmailVerificationByHash(ctx context.Context, uow *UnitOfWork, tokenHash string) (*domain.EmailVerificationToken, error) {
	row, err := r.getByHash(ctx, uow, singleUseKindEmailVerify, tokenHash)
	if err != nil {
		return nil, err
	}
	return domain.NewEmailVerificationTokenFromRow(row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.UsedAt, row.CreatedAt), nil
}

// GetPasswordResetByHash looks up a password reset token row by its hash.
func (r *SingleUseTokenRepository) GetPasswordResetByHash(ctx context.Context, uow *UnitOfWork, tokenHash string) (*domain.PasswordResetToken, error) {
	row, err := r.getByHash(ctx, uow, singleUseKindPasswordReset, tokenHash)
	if err != nil {
		return nil, err
	}
	return domain.NewPasswordResetTokenFromRow(row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.UsedAt, row.CreatedAt), nil
}

// MarkUsed stamps used_at conditionally on it still being NULL, so a racing
// double-redeem of the same token can only ever succeed once.
func (r *SingleUseTokenRepository) MarkUsed(ctx context.Context, uow *UnitOfWork, id uuid.UUID, now time.Time) error {
	tag, err := uow.Tx().Exec(ctx, `UPDATE single_use_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, now)
	if err != nil {
		return NewStorageError("MarkUsed:single_use_tokens", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenAlreadyUsed
	}
	return nil
}
