package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

func TestMemoryRepositoryEnforcesCanonicalUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, service.Organization{ID: uuid.New(), Name: "Acme Corp", CanonicalName: "acme_corp"})
	require.NoError(t, err)
	require.False(t, first.CreatedAt.IsZero())
	require.Equal(t, first.CreatedAt, first.UpdatedAt)

	_, err = repo.Create(ctx, service.Organization{ID: uuid.New(), Name: "acme-corp", CanonicalName: "acme_corp"})
	require.ErrorIs(t, err, service.ErrDuplicateTenant)

	got, err := repo.FindByCanonicalName(ctx, "acme_corp")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	_, err = repo.FindByCanonicalName(ctx, "ghost")
	require.ErrorIs(t, err, service.ErrNotFound)

	require.NoError(t, repo.Touch(ctx, first.ID))
	require.ErrorIs(t, repo.Touch(ctx, uuid.New()), service.ErrNotFound)
}

func TestMemoryRepositoryListPaginates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, service.Organization{
			ID:            uuid.New(),
			CanonicalName: fmt.Sprintf("org_%d", i),
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	res, err := repo.List(ctx, service.ListOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 5, res.TotalItems)
	require.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Organizations, 2)
	require.Equal(t, "org_2", res.Organizations[0].CanonicalName)

	res, err = repo.List(ctx, service.ListOptions{Page: 9})
	require.NoError(t, err)
	require.Empty(t, res.Organizations)

	names, err := repo.CanonicalNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"org_0", "org_1", "org_2", "org_3", "org_4"}, names)
}

func TestErrorMapping(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: persistence.OrganizationCanonicalNameConstraint}
	require.ErrorIs(t, mapConflict(dup), service.ErrDuplicateTenant)

	other := errors.New("connection reset")
	require.ErrorIs(t, mapConflict(other), other)
	require.NotErrorIs(t, mapConflict(other), service.ErrDuplicateTenant)
	require.NoError(t, mapConflict(nil))

	require.ErrorIs(t, mapNotFound(persistence.ErrOrganizationNotFound), service.ErrNotFound)
	require.ErrorIs(t, mapNotFound(other), other)
}
