package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrganizationsTable is the registry table in the master database.
const OrganizationsTable = "organizations"

// OrganizationCanonicalNameConstraint is the unique constraint arbitrating concurrent registrations.
const OrganizationCanonicalNameConstraint = "organizations_canonical_name_key"

// ErrOrganizationNotFound is returned when no registry row matches.
var ErrOrganizationNotFound = errors.New("organization not found")

// OrganizationRecord is one row of the registry.
type OrganizationRecord struct {
	ID            uuid.UUID `db:"id"`
	Name          string    `db:"name"`
	CanonicalName string    `db:"canonical_name"`
	AdminEmail    string    `db:"admin_email"`
	DatabaseURL   string    `db:"database_url"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type registryQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrganizationStore reads and writes the registry through the master pool.
type OrganizationStore struct {
	db registryQuerier
}

// NewOrganizationStore creates a store; BootstrapMasterSchema must have run.
func NewOrganizationStore(pool *pgxpool.Pool) (*OrganizationStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &OrganizationStore{db: pool}, nil
}

const organizationColumns = `id, name, canonical_name, admin_email, database_url, created_at, updated_at`

// Create inserts a registry row. A concurrent insert of the same canonical name fails with a unique violation on
// OrganizationCanonicalNameConstraint; callers translate it.
func (s *OrganizationStore) Create(ctx context.Context, rec OrganizationRecord) (OrganizationRecord, error) {
	if rec.ID == uuid.Nil {
		return OrganizationRecord{}, errors.New("organization id is required")
	}
	if rec.CanonicalName == "" {
		return OrganizationRecord{}, errors.New("canonical name is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (id, name, canonical_name, admin_email, database_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        RETURNING %s
    `, OrganizationsTable, organizationColumns)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := s.db.QueryRow(ctx, query, rec.ID, rec.Name, rec.CanonicalName, rec.AdminEmail, rec.DatabaseURL, createdAt)
	return scanOrganizationRecord(row)
}

// GetByCanonicalName returns the registry row for a canonical name.
func (s *OrganizationStore) GetByCanonicalName(ctx context.Context, canonical string) (OrganizationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE canonical_name = $1`, organizationColumns, OrganizationsTable)
	return scanOrganizationRecord(s.db.QueryRow(ctx, query, canonical))
}

// Touch bumps updated_at, the only mutable column.
func (s *OrganizationStore) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET updated_at = NOW() WHERE id = $1`, OrganizationsTable), id)
	if err != nil {
		return fmt.Errorf("touch organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// List returns a page of organizations ordered by creation time, newest first, plus the total count.
func (s *OrganizationStore) List(ctx context.Context, limit, offset int) ([]OrganizationRecord, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", OrganizationsTable)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, organizationColumns, OrganizationsTable)
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	records := make([]OrganizationRecord, 0)
	for rows.Next() {
		rec, err := scanOrganizationRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate organizations: %w", err)
	}

	return records, total, nil
}

// CanonicalNames returns every registered canonical name.
func (s *OrganizationStore) CanonicalNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT canonical_name FROM %s ORDER BY canonical_name`, OrganizationsTable))
	if err != nil {
		return nil, fmt.Errorf("list canonical names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect canonical names: %w", err)
	}
	return names, nil
}

func scanOrganizationRecord(row pgx.Row) (OrganizationRecord, error) {
	var rec OrganizationRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.CanonicalName, &rec.AdminEmail, &rec.DatabaseURL, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrganizationRecord{}, ErrOrganizationNotFound
		}
		return OrganizationRecord{}, err
	}
	return rec, nil
}
