package domain

import (
	"time"

	"github.com/google/uuid"
)

// FailedLoginThreshold is N in spec §4.4: consecutive failures before lockout.
const FailedLoginThreshold = 5

// LockoutDuration is the lockout window applied once the threshold is hit.
const LockoutDuration = 15 * time.Minute

// User is the identity aggregate root. Tenant-scoped: OrganizationID is set
// once at creation and never changes.
type User struct {
	Aggregate

	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	Email               Email
	Phone               *Phone
	PasswordHash        PasswordHash
	FullName            string
	IsActive            bool
	EmailVerified       bool
	PhoneVerified       bool
	LastLoginAt         *time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
	Metadata            map[string]string
	CreatedAt           time.Time
}

// NewUser constructs a new, active user for org with an unverified email.
func NewUser(orgID uuid.UUID, email Email, hash PasswordHash, fullName string) *User {
	u := &User{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Email:          email,
		PasswordHash:   hash,
		FullName:       fullName,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		Metadata:       map[string]string{},
	}
	u.Raise(NewUserRegistered(u.ID, orgID, email.String()))
	return u
}

// IsLocked reports whether the account is presently under lockout.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RegisterFailedLogin increments the failure counter and applies lockout
// once the threshold is reached, per spec §4.4 step 5.
func (u *User) RegisterFailedLogin(now time.Time) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= FailedLoginThreshold {
		unlockAt := now.Add(LockoutDuration)
		u.LockedUntil = &unlockAt
		u.Raise(NewUserLocked(u.ID, u.OrganizationID, unlockAt))
	}
}

// RegisterSuccessfulLogin resets lockout state and stamps LastLoginAt.
func (u *User) RegisterSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.Raise(NewUserLoggedIn(u.ID, u.OrganizationID))
}

// ChangePassword replaces the stored hash, resets the failure counter (the
// account is demonstrably under the owner's control again), and raises the
// event that downstream handlers use to revoke all refresh tokens.
func (u *User) ChangePassword(newHash PasswordHash) {
	u.PasswordHash = newHash
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.Raise(NewPasswordChanged(u.ID, u.OrganizationID))
}

// Deactivate disables the account; callers must separately revoke refresh
// tokens (the handler orchestrates that via the repository, since token
// revocation is not part of the User aggregate's own state).
func (u *User) Deactivate() {
	u.IsActive = false
}

// VerifyEmail marks the address verified.
func (u *User) VerifyEmail() {
	u.EmailVerified = true
}
