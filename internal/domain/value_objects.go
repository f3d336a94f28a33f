package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// emailPattern is intentionally "RFC-lite" per spec: good enough to reject
// garbage without re-implementing RFC 5322.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email is a normalized, validated email address value object.
type Email struct {
	value string
}

// NewEmail normalizes (lower-case, trimmed) and validates an email string.
func NewEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(normalized) {
		return Email{}, fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return Email{value: normalized}, nil
}

func (e Email) String() string { return e.value }

// phonePattern accepts loose E.164-ish input: optional leading +, 7-15 digits.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// Phone is a validated phone number value object, stored digits-only with
// an optional leading '+'.
type Phone struct {
	value string
}

// NewPhone validates and normalizes a phone number.
func NewPhone(raw string) (Phone, error) {
	normalized := strings.TrimSpace(raw)
	if !phonePattern.MatchString(normalized) {
		return Phone{}, fmt.Errorf("%w: invalid phone format", ErrValidation)
	}
	return Phone{value: normalized}, nil
}

func (p Phone) String() string { return p.value }

// PasswordHash wraps an opaque, already-hashed password. It is never
// logged, marshaled to audit metadata, or compared except via the
// PasswordHasher port's constant-time Compare.
type PasswordHash struct {
	value string
}

// NewPasswordHash wraps a hash produced by a PasswordHasher. It does not
// itself hash anything — hashing is the hasher port's job.
func NewPasswordHash(hashed string) PasswordHash {
	return PasswordHash{value: hashed}
}

func (h PasswordHash) String() string { return h.value }

// MarshalJSON deliberately never emits the underlying hash, even by
// accident through a struct that embeds this type.
func (h PasswordHash) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}

func (h PasswordHash) GoString() string { return "PasswordHash([redacted])" }

// permissionPattern enforces "resource:action" in lower_snake form.
var permissionPattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+$`)

// Permission is a single "resource:action" capability string.
type Permission string

// NewPermission validates the "resource:action" shape.
func NewPermission(raw string) (Permission, error) {
	if !permissionPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: permission must match resource:action", ErrValidation)
	}
	return Permission(raw), nil
}

// PermissionSet is a deduplicated set of permissions. It is a map, so
// iteration order (and the order of Slice) is not defined.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from raw strings, skipping invalid ones.
func NewPermissionSet(raw ...string) PermissionSet {
	set := make(PermissionSet, len(raw))
	for _, r := range raw {
		if p, err := NewPermission(r); err == nil {
			set[p] = struct{}{}
		}
	}
	return set
}

// Union returns a new set containing the members of both sets.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Slice returns the set's members as a plain string slice.
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	return out
}

// Has reports whether permission p is present.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}
