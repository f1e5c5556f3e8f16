package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

// UsersTable holds principals inside each organization database.
const UsersTable = "users"

// UsersEmailConstraint enforces one principal per email within an organization.
const UsersEmailConstraint = "users_email_key"

var (
	// ErrPrincipalNotFound indicates no principal with the given email exists in the organization.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPrincipalConflict indicates the email is already taken inside the organization.
	ErrPrincipalConflict = errors.New("principal already exists")
)

// PrincipalRecord is a row of an organization's users table.
type PrincipalRecord struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	IsAdmin        bool      `db:"is_admin"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
}

// CreatePrincipalParams captures the fields required to insert a principal.
type CreatePrincipalParams struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	IsAdmin        bool
	IsActive       bool
}

// PrincipalStore reads and writes principals of whichever organization database the locator points at.
type PrincipalStore struct {
	director *Director
}

// NewPrincipalStore returns a store routing every call through the director.
func NewPrincipalStore(director *Director) (*PrincipalStore, error) {
	if director == nil {
		return nil, errors.New("director is required")
	}
	return &PrincipalStore{director: director}, nil
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a principal into the organization database at loc.
func (s *PrincipalStore) Create(ctx context.Context, loc orgspace.Locator, params CreatePrincipalParams) (PrincipalRecord, error) {
	if params.ID == uuid.Nil {
		return PrincipalRecord{}, errors.New("principal id is required")
	}
	if params.HashedPassword == "" {
		return PrincipalRecord{}, errors.New("hashed password is required")
	}

	var out PrincipalRecord
	err := s.director.WithTx(ctx, loc, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (id, email, hashed_password, is_admin, is_active)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, email, hashed_password, is_admin, is_active, created_at
        `, UsersTable), params.ID, NormalizeEmail(params.Email), params.HashedPassword, params.IsAdmin, params.IsActive)

		rec, err := scanPrincipal(row)
		if err != nil {
			if IsUniqueViolation(err, UsersEmailConstraint) {
				return ErrPrincipalConflict
			}
			return fmt.Errorf("insert principal: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return PrincipalRecord{}, err
	}
	return out, nil
}

// FindByEmail returns the principal with the given email from the organization database at loc.
func (s *PrincipalStore) FindByEmail(ctx context.Context, loc orgspace.Locator, email string) (PrincipalRecord, error) {
	var out PrincipalRecord
	err := s.director.WithConn(ctx, loc, func(conn Conn) error {
		row := conn.QueryRow(ctx, fmt.Sprintf(`
            SELECT id, email, hashed_password, is_admin, is_active, created_at
            FROM %s WHERE email = $1
        `, UsersTable), NormalizeEmail(email))

		rec, err := scanPrincipal(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPrincipalNotFound
			}
			return fmt.Errorf("find principal: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return PrincipalRecord{}, err
	}
	return out, nil
}

// CountAdmins returns the number of admin principals; used to check bootstrap state.
func (s *PrincipalStore) CountAdmins(ctx context.Context, loc orgspace.Locator) (int, error) {
	var count int
	err := s.director.WithConn(ctx, loc, func(conn Conn) error {
		return conn.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE is_admin`, UsersTable)).Scan(&count)
	})
	return count, err
}

func scanPrincipal(row pgx.Row) (PrincipalRecord, error) {
	var rec PrincipalRecord
	if err := row.Scan(&rec.ID, &rec.Email, &rec.HashedPassword, &rec.IsAdmin, &rec.IsActive, &rec.CreatedAt); err != nil {
		return PrincipalRecord{}, err
	}
	return rec, nil
}
