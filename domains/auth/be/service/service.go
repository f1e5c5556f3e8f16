package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

// Errors returned by the service layer.
var (
	ErrTenantNotFound = errors.New("organization not found")
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords and inactive principals alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("admin role required")
	// ErrPrincipalNotFound is what PrincipalFinder returns for unknown emails; it never leaves this package.
	ErrPrincipalNotFound = errors.New("principal not found")
)

// Organization is what authentication needs to know about a registry entry.
type Organization struct {
	CanonicalName string
	Locator       orgspace.Locator
}

// Principal is a user inside an organization database.
type Principal struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	IsAdmin        bool
	IsActive       bool
}

// Session is the result of a successful authentication.
type Session struct {
	AccessToken  string
	TokenType    string
	ExpiresAt    time.Time
	Organization string
	Principal    Principal
}

// OrganizationResolver finds an organization by any spelling of its name, or returns ErrTenantNotFound.
type OrganizationResolver interface {
	Resolve(ctx context.Context, name string) (Organization, error)
}

// PrincipalFinder reads a principal from the organization database at loc, or returns ErrPrincipalNotFound.
type PrincipalFinder interface {
	FindByEmail(ctx context.Context, loc orgspace.Locator, email string) (Principal, error)
}

// PasswordVerifier is the verification half of the hashing capability.
type PasswordVerifier interface {
	Verify(password, digest string) bool
	VerifyDummy(password string)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(p platformauth.Principal) (string, time.Time, error)
}

// Authenticator is the operation set exposed to transports.
type Authenticator interface {
	Authenticate(ctx context.Context, organization, email, password string) (Session, error)
	AdminLogin(ctx context.Context, organization, email, password string) (Session, error)
}

// Service authenticates principals against their own organization database.
type Service struct {
	orgs       OrganizationResolver
	principals PrincipalFinder
	passwords  PasswordVerifier
	tokens     TokenIssuer
	logger     *zap.Logger
}

// New constructs a Service with required dependencies.
func New(orgs OrganizationResolver, principals PrincipalFinder, passwords PasswordVerifier, tokens TokenIssuer, logger *zap.Logger) *Service {
	if orgs == nil {
		panic("organization resolver is required")
	}
	if principals == nil {
		panic("principal finder is required")
	}
	if passwords == nil {
		panic("password verifier is required")
	}
	if tokens == nil {
		panic("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{orgs: orgs, principals: principals, passwords: passwords, tokens: tokens, logger: logger}
}

var _ Authenticator = (*Service)(nil)

// Authenticate verifies credentials inside the named organization and issues a session token.
func (s *Service) Authenticate(ctx context.Context, organization, email, password string) (Session, error) {
	org, principal, err := s.verify(ctx, organization, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(org, principal)
}

// AdminLogin is Authenticate restricted to admins; no token is issued for other principals.
func (s *Service) AdminLogin(ctx context.Context, organization, email, password string) (Session, error) {
	org, principal, err := s.verify(ctx, organization, email, password)
	if err != nil {
		return Session{}, err
	}
	if err := RequireAdmin(principal); err != nil {
		return Session{}, err
	}
	return s.issue(org, principal)
}

// RequireAdmin returns ErrNotAdmin unless p is an admin.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}

func (s *Service) verify(ctx context.Context, organization, email, password string) (Organization, Principal, error) {
	org, err := s.orgs.Resolve(ctx, organization)
	if err != nil {
		return Organization{}, Principal{}, err
	}

	logger := platformlogging.FromContextOr(ctx, s.logger).With(zap.String("organization", org.CanonicalName))

	principal, err := s.principals.FindByEmail(ctx, org.Locator, email)
	switch {
	case errors.Is(err, ErrPrincipalNotFound):
		s.passwords.VerifyDummy(password)
		logger.Info("login rejected", zap.String("reason", "unknown principal"))
		return Organization{}, Principal{}, ErrInvalidCredentials
	case err != nil:
		return Organization{}, Principal{}, fmt.Errorf("find principal in %q: %w", org.CanonicalName, err)
	}

	if !s.passwords.Verify(password, principal.HashedPassword) {
		logger.Info("login rejected", zap.String("reason", "password mismatch"))
		return Organization{}, Principal{}, ErrInvalidCredentials
	}
	if !principal.IsActive {
		logger.Info("login rejected", zap.String("reason", "inactive principal"))
		return Organization{}, Principal{}, ErrInvalidCredentials
	}

	return org, principal, nil
}

func (s *Service) issue(org Organization, principal Principal) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(platformauth.Principal{
		ID:           principal.ID.String(),
		Email:        principal.Email,
		IsAdmin:      principal.IsAdmin,
		Organization: org.CanonicalName,
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	principal.HashedPassword = ""
	return Session{
		AccessToken:  token,
		TokenType:    platformauth.TokenType,
		ExpiresAt:    expiresAt,
		Organization: org.CanonicalName,
		Principal:    principal,
	}, nil
}

// ErrorCode classifies err for metrics labels.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTenantNotFound):
		return "tenant_not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrNotAdmin):
		return "not_admin"
	default:
		return "unknown"
	}
}
