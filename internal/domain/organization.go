package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// OrganizationMetadata is the free-form-but-structured bag of org settings.
type OrganizationMetadata struct {
	Timezone string            `json:"timezone"`
	Language string            `json:"language"`
	Branding map[string]string `json:"branding,omitempty"`
	Features map[string]bool   `json:"features,omitempty"`
	Limits   map[string]int    `json:"limits,omitempty"`
}

// Organization is the tenant root aggregate.
type Organization struct {
	Aggregate

	ID        uuid.UUID
	Name      string
	Slug      string
	Industry  string
	Metadata  OrganizationMetadata
	IsActive  bool
	CreatedAt time.Time
	DeletedAt *time.Time
}

// NewOrganization creates a new organization, validating slug invariants
// (globally unique is enforced by the repository's unique index; lower
// kebab is enforced here).
func NewOrganization(name, slug, industry string) (*Organization, error) {
	normalizedSlug := strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(normalizedSlug) {
		return nil, fmt.Errorf("%w: slug must be lowercase kebab-case", ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	org := &Organization{
		ID:        uuid.New(),
		Name:      name,
		Slug:      normalizedSlug,
		Industry:  industry,
		Metadata:  OrganizationMetadata{Timezone: "UTC", Language: "en"},
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	org.Raise(NewOrganizationCreated(org.ID, org.Slug))
	return org, nil
}

// Deactivate reversibly disables the organization.
func (o *Organization) Deactivate() {
	o.IsActive = false
}

// Reactivate reverses Deactivate.
func (o *Organization) Reactivate() {
	o.IsActive = true
}

// SoftDelete marks the organization deleted; scoped child tables cascade
// via FK at the storage layer, not here.
func (o *Organization) SoftDelete() {
	now := time.Now().UTC()
	o.DeletedAt = &now
	o.IsActive = false
}

func (o *Organization) IsDeleted() bool { return o.DeletedAt != nil }
