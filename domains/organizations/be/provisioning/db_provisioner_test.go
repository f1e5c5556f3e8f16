package provisioning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/repo"
	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence/pgtest"
)

func TestDBProvisionerAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping provisioning integration test in short mode")
	}

	server := pgtest.Start(t)
	logger := zaptest.NewLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	director := persistence.NewDirector(persistence.DirectorConfig{ConnectTimeout: 10 * time.Second, Logger: logger})
	prov := NewDBProvisioner(director, server.Rule, logger)

	t.Run("provision is idempotent", func(t *testing.T) {
		loc, err := prov.Provision(ctx, "Acme Corp")
		require.NoError(t, err)
		require.Equal(t, "org_acme_corp", loc.Database)

		again, err := prov.Provision(ctx, "acme-corp")
		require.NoError(t, err)
		require.Equal(t, loc, again)

		status, err := prov.Check(ctx, "Acme Corp")
		require.NoError(t, err)
		require.Equal(t, service.ProvisionStatus{DatabaseExists: true, SchemaReady: true}, status)
	})

	t.Run("concurrent provision of one name", func(t *testing.T) {
		var g errgroup.Group
		for i := 0; i < 6; i++ {
			g.Go(func() error {
				_, err := prov.Provision(ctx, "Race Inc")
				return err
			})
		}
		require.NoError(t, g.Wait())
	})

	t.Run("check unknown", func(t *testing.T) {
		status, err := prov.Check(ctx, "Nobody Ltd")
		require.NoError(t, err)
		require.False(t, status.DatabaseExists)
		require.False(t, status.SchemaReady)
	})

	t.Run("databases lists prefixed only", func(t *testing.T) {
		names, err := prov.Databases(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"org_acme_corp", "org_race_inc"}, names)
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		_, err := prov.Provision(ctx, `x"; DROP DATABASE postgres; --`)
		var provisionErr *service.ProvisionError
		require.ErrorAs(t, err, &provisionErr)
		require.Equal(t, service.ReasonCreateFailed, provisionErr.Reason)
	})

	t.Run("bootstrap creates exactly one admin", func(t *testing.T) {
		loc, err := prov.Provision(ctx, "Boot Co")
		require.NoError(t, err)

		principals, err := persistence.NewPrincipalStore(director)
		require.NoError(t, err)
		hasher, err := platformauth.NewHasher(bcrypt.MinCost)
		require.NoError(t, err)
		b := NewAdminBootstrapper(principals, hasher)

		admin, err := b.Bootstrap(ctx, loc, "admin@boot.test", "secret123")
		require.NoError(t, err)
		require.True(t, admin.IsAdmin)

		_, err = b.Bootstrap(ctx, loc, "ADMIN@boot.test", "secret123")
		require.ErrorIs(t, err, service.ErrPrincipalExists)

		count, err := b.Admins(ctx, loc)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		rec, err := principals.FindByEmail(ctx, loc, "admin@boot.test")
		require.NoError(t, err)
		require.True(t, hasher.Verify("secret123", rec.HashedPassword))
	})
}

func TestRegisterConcurrentlyAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping registration integration test in short mode")
	}

	server := pgtest.Start(t)
	logger := zaptest.NewLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: server.MasterConnString})
	require.NoError(t, err)
	t.Cleanup(func() { persistence.ClosePool(pool) })
	require.NoError(t, persistence.BootstrapMasterSchema(ctx, pool))

	store, err := persistence.NewOrganizationStore(pool)
	require.NoError(t, err)

	director := persistence.NewDirector(persistence.DirectorConfig{Logger: logger})
	principals, err := persistence.NewPrincipalStore(director)
	require.NoError(t, err)
	hasher, err := platformauth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	svc := service.New(
		repo.NewPostgresRepository(store),
		NewDBProvisioner(director, server.Rule, logger),
		NewAdminBootstrapper(principals, hasher),
		server.Rule,
		logger,
	)

	names := []string{"Acme Corp", "acme-corp"}
	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			_, results[i] = svc.Register(ctx, service.CreateInput{Name: name, AdminEmail: fmt.Sprintf("admin%d@acme.test", i), AdminPassword: "secret123"})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, service.ErrDuplicateTenant)
	}
	require.Equal(t, 1, succeeded)

	registered, err := store.CanonicalNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"acme_corp"}, registered)

	loc, err := server.Rule.Derive("Acme Corp")
	require.NoError(t, err)
	admins, err := principals.CountAdmins(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, 1, admins)

	orphans, err := svc.Orphans(ctx)
	require.NoError(t, err)
	require.Empty(t, orphans)
}
