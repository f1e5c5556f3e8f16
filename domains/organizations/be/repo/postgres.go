package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

const defaultPageSize = 20

// PostgresRepository implements the organization registry on the master database.
type PostgresRepository struct {
	store *persistence.OrganizationStore
}

// NewPostgresRepository constructs a repository backed by OrganizationStore.
func NewPostgresRepository(store *persistence.OrganizationStore) *PostgresRepository {
	if store == nil {
		panic("organization store is required")
	}
	return &PostgresRepository{store: store}
}

var _ service.Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) Create(ctx context.Context, org service.Organization) (service.Organization, error) {
	out, err := r.store.Create(ctx, toRecord(org))
	if err != nil {
		return service.Organization{}, mapConflict(err)
	}
	return toServiceOrganization(out), nil
}

func (r *PostgresRepository) FindByCanonicalName(ctx context.Context, canonical string) (service.Organization, error) {
	rec, err := r.store.GetByCanonicalName(ctx, canonical)
	if err != nil {
		return service.Organization{}, mapNotFound(err)
	}
	return toServiceOrganization(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page, size := normalizePage(opts)
	offset := (page - 1) * size

	rows, total, err := r.store.List(ctx, size, offset)
	if err != nil {
		return service.ListResult{}, err
	}

	orgs := make([]service.Organization, 0, len(rows))
	for _, rec := range rows {
		orgs = append(orgs, toServiceOrganization(rec))
	}

	return service.ListResult{
		Organizations: orgs,
		Page:          page,
		PageSize:      size,
		TotalItems:    total,
		TotalPages:    (total + size - 1) / size,
	}, nil
}

func (r *PostgresRepository) CanonicalNames(ctx context.Context) ([]string, error) {
	return r.store.CanonicalNames(ctx)
}

func (r *PostgresRepository) Touch(ctx context.Context, id uuid.UUID) error {
	return mapNotFound(r.store.Touch(ctx, id))
}

func normalizePage(opts service.ListOptions) (int, int) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	return page, size
}

func toRecord(org service.Organization) persistence.OrganizationRecord {
	return persistence.OrganizationRecord{
		ID:            org.ID,
		Name:          org.Name,
		CanonicalName: org.CanonicalName,
		AdminEmail:    org.AdminEmail,
		DatabaseURL:   org.DatabaseURL,
		CreatedAt:     org.CreatedAt,
		UpdatedAt:     org.UpdatedAt,
	}
}

func toServiceOrganization(rec persistence.OrganizationRecord) service.Organization {
	return service.Organization{
		ID:            rec.ID,
		Name:          rec.Name,
		CanonicalName: rec.CanonicalName,
		AdminEmail:    rec.AdminEmail,
		DatabaseURL:   rec.DatabaseURL,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func mapConflict(err error) error {
	if persistence.IsUniqueViolation(err, persistence.OrganizationCanonicalNameConstraint) {
		return service.ErrDuplicateTenant
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrOrganizationNotFound) {
		return service.ErrNotFound
	}
	return err
}
