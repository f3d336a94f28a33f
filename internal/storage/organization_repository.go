package storage

import (
	"context"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type organizationRow struct {
	ID        pgtype.UUID
	Name      string
	Slug      string
	Industry  string
	IsActive  bool
	DeletedAt pgtype.Timestamptz
	CreatedAt pgtype.Timestamptz
}

// OrganizationRepository persists domain.Organization. It is not
// tenant-scoped: organizations are the tenant boundary itself.
type OrganizationRepository struct {
	*Repository[*domain.Organization, organizationRow]
}

func NewOrganizationRepository() *OrganizationRepository {
	return &OrganizationRepository{NewRepository(
		"organizations",
		organizationToRow,
		organizationFromRow,
		scanOrganizationRow,
		[]string{"id", "name", "slug", "industry", "is_active", "created_at"},
		func(r organizationRow) []any { return []any{r.ID, r.Name, r.Slug, r.Industry, r.IsActive, r.CreatedAt} },
		false,
	)}
}

func organizationToRow(o *domain.Organization) organizationRow {
	return organizationRow{
		ID: pgUUID(o.ID), Name: o.Name, Slug: o.Slug, Industry: o.Industry,
		IsActive: o.IsActive, DeletedAt: pgTimePtr(o.DeletedAt), CreatedAt: pgTime(o.CreatedAt),
	}
}

func organizationFromRow(r organizationRow) *domain.Organization {
	return &domain.Organization{
		ID: fromPgUUID(r.ID), Name: r.Name, Slug: r.Slug, Industry: r.Industry,
		Metadata:  domain.OrganizationMetadata{Timezone: "UTC", Language: "en"},
		IsActive:  r.IsActive,
		DeletedAt: fromPgTimePtr(r.DeletedAt),
		CreatedAt: fromPgTime(r.CreatedAt),
	}
}

func scanOrganizationRow(row pgx.Row) (organizationRow, error) {
	var r organizationRow
	err := row.Scan(&r.ID, &r.Name, &r.Slug, &r.Industry, &r.IsActive, &r.DeletedAt, &r.CreatedAt)
	return r, err
}

// GetBySlug looks an organization up by its public slug, used at signup
// and for subdomain routing.
func (r *OrganizationRepository) GetBySlug(ctx context.Context, uow *UnitOfWork, slug string) (*domain.Organization, error) {
	return r.FindOne(ctx, uow, "slug = $1", slug)
}
