package provisioning

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	sqlassets "github.com/zenGate-Global/palmyra-orgs/database"
	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

// DBProvisioner creates one PostgreSQL database per organization and initializes its schema.
type DBProvisioner struct {
	director *persistence.Director
	rule     orgspace.Rule
	logger   *zap.Logger
}

func NewDBProvisioner(director *persistence.Director, rule orgspace.Rule, logger *zap.Logger) *DBProvisioner {
	if director == nil {
		panic("db provisioner requires director")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBProvisioner{director: director, rule: rule, logger: logger}
}

var _ service.Provisioner = (*DBProvisioner)(nil)

// Provision makes sure the organization database exists and carries the organization schema. Running it again for
// the same name, or concurrently, is harmless.
func (p *DBProvisioner) Provision(ctx context.Context, name string) (orgspace.Locator, error) {
	loc, err := p.rule.Derive(name)
	if err != nil {
		return orgspace.Locator{}, &service.ProvisionError{Organization: name, Reason: service.ReasonCreateFailed, Err: err}
	}

	logger := platformlogging.FromContextOr(ctx, p.logger).With(zap.String("database", loc.Database))

	created, err := p.ensureDatabase(ctx, loc.Database)
	if err != nil {
		return orgspace.Locator{}, &service.ProvisionError{Organization: name, Reason: service.ReasonCreateFailed, Err: err}
	}
	if created {
		logger.Info("organization database created")
	}

	if err := p.ensureSchema(ctx, loc); err != nil {
		return orgspace.Locator{}, &service.ProvisionError{Organization: name, Reason: service.ReasonSchemaInitFailed, Err: err}
	}

	return loc, nil
}

// Check reports whether the database exists and has the users table.
func (p *DBProvisioner) Check(ctx context.Context, name string) (service.ProvisionStatus, error) {
	loc, err := p.rule.Derive(name)
	if err != nil {
		return service.ProvisionStatus{}, err
	}

	var status service.ProvisionStatus
	if err := p.director.WithConn(ctx, p.rule.Admin(), func(conn persistence.Conn) error {
		exists, err := databaseExists(ctx, conn, loc.Database)
		status.DatabaseExists = exists
		return err
	}); err != nil {
		return service.ProvisionStatus{}, err
	}
	if !status.DatabaseExists {
		return status, nil
	}

	if err := p.director.WithConn(ctx, loc, func(conn persistence.Conn) error {
		return conn.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+persistence.UsersTable).Scan(&status.SchemaReady)
	}); err != nil {
		return service.ProvisionStatus{}, fmt.Errorf("check schema: %w", err)
	}
	return status, nil
}

// Databases lists every non-template database carrying the organization prefix.
func (p *DBProvisioner) Databases(ctx context.Context) ([]string, error) {
	pattern := likeEscaper.Replace(p.rule.DatabasePrefix()) + "%"

	var names []string
	err := p.director.WithConn(ctx, p.rule.Admin(), func(conn persistence.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT datname FROM pg_database
			WHERE NOT datistemplate AND datname LIKE $1 ESCAPE '\'
			ORDER BY datname`, pattern)
		if err != nil {
			return err
		}
		names, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `_`, `\_`, `%`, `\%`)

// ensureDatabase runs on the maintenance database; CREATE DATABASE cannot target the database it creates.
func (p *DBProvisioner) ensureDatabase(ctx context.Context, dbName string) (bool, error) {
	created := false
	err := p.director.WithConn(ctx, p.rule.Admin(), func(conn persistence.Conn) error {
		exists, err := databaseExists(ctx, conn, dbName)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		// CREATE DATABASE refuses to run inside a transaction, so this goes straight to the connection.
		if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			if persistence.IsDuplicateDatabase(err) || persistence.IsUniqueViolation(err, "pg_database_datname_index") {
				return nil
			}
			return fmt.Errorf("create database: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// schemaLockKey serializes concurrent CREATE TABLE IF NOT EXISTS runs, which can otherwise collide on pg_type.
const schemaLockKey int64 = 0x6f72675f73636865

func (p *DBProvisioner) ensureSchema(ctx context.Context, loc orgspace.Locator) error {
	return p.director.WithTx(ctx, loc, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("lock schema: %w", err)
		}
		return persistence.ApplyStatements(ctx, tx, sqlassets.OrgUsersSQL)
	})
}

func databaseExists(ctx context.Context, conn persistence.Conn, dbName string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check database existence: %w", err)
	}
	return exists, nil
}
