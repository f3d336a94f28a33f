package domain

import "errors"

// Error codes surfaced at the domain boundary. Command handlers translate
// infrastructure failures into one of these; nothing above the domain
// layer ever sees a raw storage or cache error.
var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrAccountLocked        = errors.New("account_locked")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrPermissionDenied     = errors.New("permission_denied")
	ErrNotFound             = errors.New("not_found")
	ErrConflict             = errors.New("conflict")
	ErrDuplicateEmail       = errors.New("duplicate_email")
	ErrDuplicateSlug        = errors.New("duplicate_slug")
	ErrDuplicateRoleName    = errors.New("duplicate_role_name")
	ErrTokenExpired         = errors.New("token_expired")
	ErrTokenRevoked         = errors.New("token_revoked")
	ErrTokenAlreadyUsed     = errors.New("token_already_used")
	ErrTokenInvalid         = errors.New("token_invalid")
	ErrAPIKeyExpired        = errors.New("api_key_expired")
	ErrAPIKeyRevoked        = errors.New("api_key_revoked")
	ErrValidation           = errors.New("validation_error")
	ErrRateLimited          = errors.New("rate_limited")
	ErrTenantContextMissing = errors.New("tenant_context_missing")
	ErrInternal             = errors.New("internal_error")
	ErrProviderError        = errors.New("provider_error")
)

// StorageError wraps an underlying infrastructure error with the generic
// storage code. It is the only shape of error a repository is allowed to
// return for failures that aren't Conflict/NotFound.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError builds a StorageError, returning nil if err is nil so
// callers can `return NewStorageError(op, err)` unconditionally.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
