package messaging

import (
	"context"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
)

// CreateTemplate drafts a new template awaiting provider submission.
func (s *Service) CreateTemplate(ctx context.Context, orgID uuid.UUID, name, language string, category domain.TemplateCategory, bodyText string, variables []string) (*domain.Template, error) {
	template := domain.NewTemplate(orgID, name, language, category, bodyText, variables)
	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		return s.templates.Add(ctx, uow, template)
	})
	return template, err
}

// SubmitTemplate moves a draft template into pending provider review.
func (s *Service) SubmitTemplate(ctx context.Context, orgID, templateID uuid.UUID) error {
	return s.transitionTemplate(ctx, orgID, templateID, (*domain.Template).Submit)
}

// ApproveTemplate records a provider approval.
func (s *Service) ApproveTemplate(ctx context.Context, orgID, templateID uuid.UUID) error {
	return s.transitionTemplate(ctx, orgID, templateID, (*domain.Template).Approve)
}

// RejectTemplate records a provider rejection.
func (s *Service) RejectTemplate(ctx context.Context, orgID, templateID uuid.UUID) error {
	return s.transitionTemplate(ctx, orgID, templateID, (*domain.Template).Reject)
}

// PauseTemplate suspends an approved template without losing its approval.
func (s *Service) PauseTemplate(ctx context.Context, orgID, templateID uuid.UUID) error {
	return s.transitionTemplate(ctx, orgID, templateID, (*domain.Template).Pause)
}

func (s *Service) transitionTemplate(ctx context.Context, orgID, templateID uuid.UUID, transition func(*domain.Template) error) error {
	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		template, err := s.templates.GetByID(ctx, uow, templateID)
		if err != nil {
			return err
		}
		if err := transition(template); err != nil {
			return err
		}
		return s.templates.Update(ctx, uow, template.ID,
			"status = $2, updated_at = $3", string(template.Status), template.UpdatedAt)
	})
}
