package provisioning

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

// PasswordHasher is the hashing capability the bootstrapper needs.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// PrincipalCreator inserts and counts principals in an organization database.
type PrincipalCreator interface {
	Create(ctx context.Context, loc orgspace.Locator, params persistence.CreatePrincipalParams) (persistence.PrincipalRecord, error)
	CountAdmins(ctx context.Context, loc orgspace.Locator) (int, error)
}

// AdminBootstrapper creates the first admin principal of an organization.
type AdminBootstrapper struct {
	principals PrincipalCreator
	hasher     PasswordHasher
}

func NewAdminBootstrapper(principals PrincipalCreator, hasher PasswordHasher) *AdminBootstrapper {
	if principals == nil {
		panic("admin bootstrapper requires principal store")
	}
	if hasher == nil {
		panic("admin bootstrapper requires password hasher")
	}
	return &AdminBootstrapper{principals: principals, hasher: hasher}
}

var _ service.Bootstrapper = (*AdminBootstrapper)(nil)

// Bootstrap inserts an active admin with the given credentials into the database at loc.
func (b *AdminBootstrapper) Bootstrap(ctx context.Context, loc orgspace.Locator, email, password string) (service.Principal, error) {
	digest, err := b.hasher.Hash(password)
	if err != nil {
		return service.Principal{}, &service.BootstrapError{Err: err}
	}

	rec, err := b.principals.Create(ctx, loc, persistence.CreatePrincipalParams{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: digest,
		IsAdmin:        true,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrPrincipalConflict) {
			return service.Principal{}, &service.BootstrapError{Err: service.ErrPrincipalExists}
		}
		return service.Principal{}, &service.BootstrapError{Err: err}
	}

	return service.Principal{
		ID:        rec.ID,
		Email:     rec.Email,
		IsAdmin:   rec.IsAdmin,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Admins counts the admin principals in the database at loc.
func (b *AdminBootstrapper) Admins(ctx context.Context, loc orgspace.Locator) (int, error) {
	return b.principals.CountAdmins(ctx, loc)
}

var _ PasswordHasher = (*platformauth.Hasher)(nil)
var _ PrincipalCreator = (*persistence.PrincipalStore)(nil)
