package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

const closeTimeout = 5 * time.Second

// ConnectionError reports that a database could not be reached, rejected our credentials, or does not exist.
type ConnectionError struct {
	Database string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to database %q: %v", e.Database, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Conn is the subset of *pgx.Conn the director hands to scoped callbacks.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// DirectorConfig tunes how organization connections are dialed.
type DirectorConfig struct {
	// ConnectTimeout bounds the dial when the caller's context has no earlier deadline; zero keeps the pgx default.
	ConnectTimeout time.Duration
	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string
	Logger          *zap.Logger
}

// Director owns the lifecycle of per-database connections. Every acquisition dials exactly one database and is
// closed before the scoped helper returns; nothing is shared between organizations.
type Director struct {
	cfg  DirectorConfig
	dial func(ctx context.Context, loc orgspace.Locator) (Conn, error)
}

// NewDirector constructs a Director dialing real PostgreSQL servers.
func NewDirector(cfg DirectorConfig) *Director {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &Director{cfg: cfg}
	d.dial = func(ctx context.Context, loc orgspace.Locator) (Conn, error) {
		return d.Open(ctx, loc)
	}
	return d
}

// Open dials the database identified by loc. The caller owns the connection and must Close it.
func (d *Director) Open(ctx context.Context, loc orgspace.Locator) (*pgx.Conn, error) {
	connConfig, err := pgx.ParseConfig(loc.ConnString())
	if err != nil {
		return nil, &ConnectionError{Database: loc.Database, Err: err}
	}
	if d.cfg.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = d.cfg.ConnectTimeout
	}
	if d.cfg.ApplicationName != "" {
		connConfig.RuntimeParams["application_name"] = d.cfg.ApplicationName
	}

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, &ConnectionError{Database: loc.Database, Err: err}
	}
	return conn, nil
}

// WithConn runs fn with a connection to loc and closes it on every exit path, including panics.
func (d *Director) WithConn(ctx context.Context, loc orgspace.Locator, fn func(conn Conn) error) error {
	conn, err := d.dial(ctx, loc)
	if err != nil {
		return err
	}
	defer d.release(ctx, loc, conn)

	return fn(conn)
}

// WithTx runs fn inside a transaction on a dedicated connection to loc. The transaction is committed only when
// fn returns nil; the connection is closed afterwards regardless of outcome.
func (d *Director) WithTx(ctx context.Context, loc orgspace.Locator, fn func(tx pgx.Tx) error) error {
	return d.WithConn(ctx, loc, func(conn Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) // nolint:errcheck

		if err := fn(tx); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

func (d *Director) release(ctx context.Context, loc orgspace.Locator, conn Conn) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	if err := conn.Close(closeCtx); err != nil {
		d.cfg.Logger.Debug("close organization connection", zap.String("database", loc.Database), zap.Error(err))
	}
}
