package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Template is a provider-approved message template. Outbound messages of
// type template reference one by Name+Language; the content variables are
// supplied by the caller at send time.
type Template struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Language       string
	Category       TemplateCategory
	Status         TemplateStatus
	BodyText       string
	Variables      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTemplate constructs a draft template awaiting provider submission.
func NewTemplate(orgID uuid.UUID, name, language string, category TemplateCategory, bodyText string, variables []string) *Template {
	now := time.Now().UTC()
	return &Template{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Language:       language,
		Category:       category,
		Status:         TemplateStatusDraft,
		BodyText:       bodyText,
		Variables:      variables,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Submit moves a draft template into pending provider review.
func (t *Template) Submit() error {
	if t.Status != TemplateStatusDraft {
		return fmt.Errorf("%w: only draft templates can be submitted", ErrValidation)
	}
	t.Status = TemplateStatusPending
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Approve records a provider approval, making the template usable for sends.
func (t *Template) Approve() error {
	if t.Status != TemplateStatusPending {
		return fmt.Errorf("%w: only pending templates can be approved", ErrValidation)
	}
	t.Status = TemplateStatusApproved
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Reject records a provider rejection.
func (t *Template) Reject() error {
	if t.Status != TemplateStatusPending {
		return fmt.Errorf("%w: only pending templates can be rejected", ErrValidation)
	}
	t.Status = TemplateStatusRejected
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Pause suspends an approved template from further use without losing its
// approval (e.g. a compliance hold), distinct from Reject.
func (t *Template) Pause() error {
	if t.Status != TemplateStatusApproved {
		return fmt.Errorf("%w: only approved templates can be paused", ErrValidation)
	}
	t.Status = TemplateStatusPaused
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Usable reports whether the template may be referenced by a new send.
func (t *Template) Usable() bool {
	return t.Status == TemplateStatusApproved
}

// Render substitutes positional variables ({{1}}, {{2}}, ...) into BodyText.
// A minimal implementation: the messaging pipeline (spec §4.10) only needs
// variable-count validation plus literal substitution, not a full
// templating engine.
func (t *Template) Render(values []string) (string, error) {
	if len(values) != len(t.Variables) {
		return "", fmt.Errorf("%w: template %s expects %d variables, got %d", ErrValidation, t.Name, len(t.Variables), len(values))
	}
	out := t.BodyText
	for i, v := range values {
		placeholder := fmt.Sprintf("{{%d}}", i+1)
		out = strings.ReplaceAll(out, placeholder, v)
	}
	return out, nil
}
