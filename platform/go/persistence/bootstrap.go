package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/palmyra-orgs/database"
)

// BootstrapMasterSchema applies the registry DDL to the master database in a single transaction.
// The DDL is embedded at build time and idempotent, so the API server runs it on every start.
func BootstrapMasterSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap master schema: pool is required")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := ApplyStatements(ctx, tx, sqlassets.OrganizationsSQL); err != nil {
		return fmt.Errorf("bootstrap master schema: %w", err)
	}

	return tx.Commit(ctx)
}

// Execer is satisfied by *pgx.Conn, pgx.Tx, *pgxpool.Pool and Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ApplyStatements executes each ';'-separated statement of ddl in order.
func ApplyStatements(ctx context.Context, db Execer, ddl string) error {
	for _, stmt := range SplitStatements(ddl) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	return nil
}

// SplitStatements splits a DDL script on ';' and drops empty and comment-only fragments.
// The embedded scripts contain no procedural bodies, so a plain split is sufficient.
func SplitStatements(ddl string) []string {
	raw := strings.Split(ddl, ";")
	statements := make([]string, 0, len(raw))
	for _, part := range raw {
		stmt := strings.TrimSpace(stripLineComments(part))
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func stripLineComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
