// Package pgtest starts disposable PostgreSQL servers for integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

const (
	image          = "postgres:16-alpine"
	MasterDatabase = "master_org_db"
	User           = "postgres"
	Password       = "postgres"
)

// Server is a running container plus the coordinates tests need to reach it.
type Server struct {
	// MasterConnString points at the registry database.
	MasterConnString string
	// Rule derives organization databases on the same server.
	Rule orgspace.Rule
}

// Start launches a PostgreSQL container and terminates it when the test finishes.
// Callers are expected to skip in short mode before calling it.
func Start(t *testing.T) Server {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		image,
		postgres.WithDatabase(MasterDatabase),
		postgres.WithUsername(User),
		postgres.WithPassword(Password),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	parsed, err := pgx.ParseConfig(connString)
	require.NoError(t, err)

	return Server{
		MasterConnString: connString,
		Rule: orgspace.Rule{
			Host:          parsed.Host,
			Port:          int(parsed.Port),
			User:          User,
			Password:      Password,
			SSLMode:       "disable",
			Prefix:        orgspace.DefaultPrefix,
			AdminDatabase: "postgres",
		},
	}
}
