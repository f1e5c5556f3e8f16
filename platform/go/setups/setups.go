// Package setups assembles the organization and auth services from configuration. The API server and orgctl share it.
package setups

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	authrepo "github.com/zenGate-Global/palmyra-orgs/domains/auth/be/repo"
	authservice "github.com/zenGate-Global/palmyra-orgs/domains/auth/be/service"
	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/provisioning"
	orgrepo "github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/repo"
	orgservice "github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/config"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

const defaultConnectTimeout = 10 * time.Second

// Options tunes the assembly.
type Options struct {
	Config config.Shared
	// Component is reported as the PostgreSQL application_name.
	Component string
	Logger    *zap.Logger
	// Registerer receives service metrics; nil disables them.
	Registerer prometheus.Registerer
	// BcryptCost of zero means bcrypt.DefaultCost.
	BcryptCost int
}

// App holds the wired services plus the resources the caller must release with Close.
type App struct {
	Pool          *pgxpool.Pool
	Director      *persistence.Director
	Provisioner   *provisioning.DBProvisioner
	Principals    *persistence.PrincipalStore
	Tokens        *platformauth.Tokens
	Organizations orgservice.Registry
	Auth          authservice.Authenticator
}

// Wire connects to the master database, ensures the registry table exists and builds every service.
func Wire(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config

	tokens, err := platformauth.NewTokens(cfg.TokenConfig())
	if err != nil {
		return nil, fmt.Errorf("init tokens: %w", err)
	}
	hasher, err := platformauth.NewHasher(opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.MasterLocator().ConnString(),
		ApplicationName: opts.Component,
	})
	if err != nil {
		return nil, fmt.Errorf("init master pool: %w", err)
	}

	if err := persistence.BootstrapMasterSchema(ctx, pool); err != nil {
		persistence.ClosePool(pool)
		return nil, err
	}

	orgStore, err := persistence.NewOrganizationStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, fmt.Errorf("init organization store: %w", err)
	}

	director := persistence.NewDirector(persistence.DirectorConfig{
		ConnectTimeout:  defaultConnectTimeout,
		ApplicationName: opts.Component,
		Logger:          logger,
	})
	principals, err := persistence.NewPrincipalStore(director)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, fmt.Errorf("init principal store: %w", err)
	}

	rule := cfg.Rule()
	prov := provisioning.NewDBProvisioner(director, rule, logger)
	boot := provisioning.NewAdminBootstrapper(principals, hasher)

	var orgs orgservice.Registry = orgservice.New(orgrepo.NewPostgresRepository(orgStore), prov, boot, rule, logger)
	var auth authservice.Authenticator = authservice.New(
		authrepo.NewRegistryResolver(orgs),
		authrepo.NewPrincipalRepository(principals),
		hasher,
		tokens,
		logger,
	)
	if opts.Registerer != nil {
		orgs = orgservice.WithMetrics(opts.Registerer, orgs)
		auth = authservice.WithMetrics(opts.Registerer, auth)
	}

	return &App{
		Pool:          pool,
		Director:      director,
		Provisioner:   prov,
		Principals:    principals,
		Tokens:        tokens,
		Organizations: orgs,
		Auth:          auth,
	}, nil
}

// Close releases the master pool.
func (a *App) Close() {
	persistence.ClosePool(a.Pool)
}
