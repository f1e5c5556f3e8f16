package repo

import (
	"context"
	"errors"

	authservice "github.com/zenGate-Global/palmyra-orgs/domains/auth/be/service"
	orgservice "github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

// Registry is the subset of the organization registry used to resolve tenants.
type Registry interface {
	Lookup(ctx context.Context, name string) (orgservice.Organization, error)
}

// RegistryResolver adapts the organization registry to the auth service.
type RegistryResolver struct {
	registry Registry
}

// NewRegistryResolver wraps registry.
func NewRegistryResolver(registry Registry) *RegistryResolver {
	if registry == nil {
		panic("organization registry is required")
	}
	return &RegistryResolver{registry: registry}
}

var _ authservice.OrganizationResolver = (*RegistryResolver)(nil)

func (r *RegistryResolver) Resolve(ctx context.Context, name string) (authservice.Organization, error) {
	org, err := r.registry.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, orgservice.ErrNotFound) {
			return authservice.Organization{}, authservice.ErrTenantNotFound
		}
		return authservice.Organization{}, err
	}
	return authservice.Organization{CanonicalName: org.CanonicalName, Locator: org.Locator}, nil
}

// PrincipalRepository reads principals from organization databases.
type PrincipalRepository struct {
	store *persistence.PrincipalStore
}

func NewPrincipalRepository(store *persistence.PrincipalStore) *PrincipalRepository {
	if store == nil {
		panic("principal store is required")
	}
	return &PrincipalRepository{store: store}
}

var _ authservice.PrincipalFinder = (*PrincipalRepository)(nil)

func (r *PrincipalRepository) FindByEmail(ctx context.Context, loc orgspace.Locator, email string) (authservice.Principal, error) {
	rec, err := r.store.FindByEmail(ctx, loc, email)
	if err != nil {
		if errors.Is(err, persistence.ErrPrincipalNotFound) {
			return authservice.Principal{}, authservice.ErrPrincipalNotFound
		}
		return authservice.Principal{}, err
	}
	return authservice.Principal{
		ID:             rec.ID,
		Email:          rec.Email,
		HashedPassword: rec.HashedPassword,
		IsAdmin:        rec.IsAdmin,
		IsActive:       rec.IsActive,
	}, nil
}
