package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

// Organization is a registry entry. DatabaseURL never carries a password; Locator is the resolved, usable form.
type Organization struct {
	ID            uuid.UUID
	Name          string
	CanonicalName string
	AdminEmail    string
	DatabaseURL   string
	Locator       orgspace.Locator
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Principal is a user inside an organization database.
type Principal struct {
	ID        uuid.UUID
	Email     string
	IsAdmin   bool
	IsActive  bool
	CreatedAt time.Time
}

// CreateInput represents the request to register an organization.
type CreateInput struct {
	Name          string
	AdminEmail    string
	AdminPassword string
}

// ListOptions captures pagination.
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResult wraps paginated organizations.
type ListResult struct {
	Organizations []Organization
	Page          int
	PageSize      int
	TotalItems    int
	TotalPages    int
}

// ProvisionStatus reports the physical state of an organization database.
type ProvisionStatus struct {
	DatabaseExists bool
	SchemaReady    bool
}

// CheckResult combines the registry view with the physical one.
type CheckResult struct {
	CanonicalName string
	DatabaseName  string
	Registered    bool
	ProvisionStatus
	// AdminReady is false for a registered organization whose bootstrap never completed.
	AdminReady bool
}

// Repository abstracts the registry table. Create must translate a canonical-name collision into
// ErrDuplicateTenant, and lookups of unknown names into ErrNotFound.
type Repository interface {
	Create(ctx context.Context, org Organization) (Organization, error)
	FindByCanonicalName(ctx context.Context, canonical string) (Organization, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	CanonicalNames(ctx context.Context) ([]string, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// Provisioner creates organization databases. Provision is mutating and idempotent, Check and Databases are
// read-only.
type Provisioner interface {
	Provision(ctx context.Context, name string) (orgspace.Locator, error)
	Check(ctx context.Context, name string) (ProvisionStatus, error)
	Databases(ctx context.Context) ([]string, error)
}

// Bootstrapper creates the initial admin inside an organization database. Admins reports how many exist.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, loc orgspace.Locator, email, password string) (Principal, error)
	Admins(ctx context.Context, loc orgspace.Locator) (int, error)
}

// Registry is the operation set exposed to transports; Service implements it and the metrics decorator wraps it.
type Registry interface {
	Register(ctx context.Context, input CreateInput) (Organization, error)
	Lookup(ctx context.Context, name string) (Organization, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Rebootstrap(ctx context.Context, name, email, password string) (Principal, error)
	Orphans(ctx context.Context) ([]string, error)
	Check(ctx context.Context, name string) (CheckResult, error)
}

// Service provides organization registry operations.
type Service struct {
	repo   Repository
	prov   Provisioner
	boot   Bootstrapper
	rule   orgspace.Rule
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Service with required dependencies.
func New(repo Repository, prov Provisioner, boot Bootstrapper, rule orgspace.Rule, logger *zap.Logger) *Service {
	if repo == nil {
		panic("organizations repo is required")
	}
	if prov == nil {
		panic("organizations provisioner is required")
	}
	if boot == nil {
		panic("organizations bootstrapper is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, prov: prov, boot: boot, rule: rule, logger: logger, now: time.Now}
}

var _ Registry = (*Service)(nil)

// Register provisions a database for a new organization, records it and creates its admin.
// Steps run in order: database, schema, registry row, admin. A failure leaves earlier steps in place.
func (s *Service) Register(ctx context.Context, input CreateInput) (Organization, error) {
	canonical, email, err := s.validateCreate(input)
	if err != nil {
		return Organization{}, err
	}

	logger := platformlogging.FromContextOr(ctx, s.logger).With(zap.String("organization", canonical))

	// Advisory only; the registry constraint decides races.
	if _, err := s.repo.FindByCanonicalName(ctx, canonical); err == nil {
		return Organization{}, ErrDuplicateTenant
	} else if !errors.Is(err, ErrNotFound) {
		return Organization{}, fmt.Errorf("check organization %q: %w", canonical, err)
	}

	loc, err := s.prov.Provision(ctx, input.Name)
	if err != nil {
		return Organization{}, err
	}

	org := Organization{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(input.Name),
		CanonicalName: canonical,
		AdminEmail:    email,
		DatabaseURL:   loc.Redacted(),
		CreatedAt:     s.now().UTC(),
	}

	created, err := s.repo.Create(ctx, org)
	if err != nil {
		if errors.Is(err, ErrDuplicateTenant) {
			logger.Info("lost registration race", zap.String("database", loc.Database))
			return Organization{}, err
		}
		logger.Warn("organization database provisioned without registry row", zap.String("database", loc.Database), zap.Error(err))
		return Organization{}, fmt.Errorf("record organization %q: %w", canonical, err)
	}
	created.Locator = loc

	if _, err := s.bootstrap(ctx, canonical, loc, email, input.AdminPassword); err != nil {
		logger.Error("organization recorded without admin", zap.String("id", created.ID.String()), zap.Error(err))
		return created, err
	}

	logger.Info("organization registered", zap.String("id", created.ID.String()), zap.String("database", loc.Database))
	return created, nil
}

// Lookup returns the organization registered under name, in any spelling that canonicalizes the same way.
func (s *Service) Lookup(ctx context.Context, name string) (Organization, error) {
	canonical, err := orgspace.Canonicalize(name)
	if err != nil {
		// Names that cannot canonicalize were never registered.
		return Organization{}, ErrNotFound
	}

	org, err := s.repo.FindByCanonicalName(ctx, canonical)
	if err != nil {
		return Organization{}, err
	}
	return s.withLocator(org)
}

// List returns a page of registered organizations.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

// Rebootstrap re-runs admin creation for an organization whose registration stopped after the registry insert.
// Organizations that already have an admin are left alone with a BootstrapError wrapping ErrPrincipalExists.
func (s *Service) Rebootstrap(ctx context.Context, name, email, password string) (Principal, error) {
	fields := FieldErrors{}
	email = validateEmail(fields, email)
	validatePassword(fields, password)
	if len(fields) > 0 {
		return Principal{}, &ValidationError{Fields: fields}
	}

	org, err := s.Lookup(ctx, name)
	if err != nil {
		return Principal{}, err
	}

	if _, err := s.prov.Provision(ctx, name); err != nil {
		return Principal{}, err
	}

	admins, err := s.boot.Admins(ctx, org.Locator)
	if err != nil {
		return Principal{}, &BootstrapError{Organization: org.CanonicalName, Err: err}
	}
	if admins > 0 {
		return Principal{}, &BootstrapError{Organization: org.CanonicalName, Err: ErrPrincipalExists}
	}

	principal, err := s.bootstrap(ctx, org.CanonicalName, org.Locator, email, password)
	if err != nil {
		return Principal{}, err
	}

	if err := s.repo.Touch(ctx, org.ID); err != nil {
		return Principal{}, fmt.Errorf("touch organization %q: %w", org.CanonicalName, err)
	}
	return principal, nil
}

// Orphans lists organization databases that exist on the server but have no registry row.
func (s *Service) Orphans(ctx context.Context) ([]string, error) {
	databases, err := s.prov.Databases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organization databases: %w", err)
	}

	names, err := s.repo.CanonicalNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registered organizations: %w", err)
	}

	prefix := s.rule.DatabasePrefix()
	registered := make(map[string]struct{}, len(names))
	for _, canonical := range names {
		registered[prefix+canonical] = struct{}{}
	}

	orphans := make([]string, 0)
	for _, db := range databases {
		if _, ok := registered[db]; !ok {
			orphans = append(orphans, db)
		}
	}
	return orphans, nil
}

// Check reports registry and physical state for name without changing either.
func (s *Service) Check(ctx context.Context, name string) (CheckResult, error) {
	canonical, err := orgspace.Canonicalize(name)
	if err != nil {
		return CheckResult{}, &ValidationError{Fields: FieldErrors{"organization_name": {err.Error()}}}
	}
	dbName, err := orgspace.DatabaseName(s.rule.DatabasePrefix(), name)
	if err != nil {
		return CheckResult{}, &ValidationError{Fields: FieldErrors{"organization_name": {err.Error()}}}
	}

	result := CheckResult{CanonicalName: canonical, DatabaseName: dbName}

	org, err := s.repo.FindByCanonicalName(ctx, canonical)
	switch {
	case err == nil:
		result.Registered = true
	case !errors.Is(err, ErrNotFound):
		return CheckResult{}, fmt.Errorf("check organization %q: %w", canonical, err)
	}

	status, err := s.prov.Check(ctx, name)
	if err != nil {
		return CheckResult{}, fmt.Errorf("check organization database %q: %w", dbName, err)
	}
	result.ProvisionStatus = status

	if result.Registered && status.SchemaReady {
		org, err = s.withLocator(org)
		if err != nil {
			return CheckResult{}, err
		}
		admins, err := s.boot.Admins(ctx, org.Locator)
		if err != nil {
			return CheckResult{}, fmt.Errorf("count admins of %q: %w", canonical, err)
		}
		result.AdminReady = admins > 0
	}
	return result, nil
}

func (s *Service) bootstrap(ctx context.Context, canonical string, loc orgspace.Locator, email, password string) (Principal, error) {
	principal, err := s.boot.Bootstrap(ctx, loc, email, password)
	if err == nil {
		return principal, nil
	}

	var bootstrapErr *BootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Organization == "" {
			bootstrapErr.Organization = canonical
		}
		return Principal{}, err
	}
	return Principal{}, &BootstrapError{Organization: canonical, Err: err}
}

func (s *Service) withLocator(org Organization) (Organization, error) {
	loc, err := s.rule.Resolve(org.DatabaseURL)
	if err != nil {
		return Organization{}, fmt.Errorf("resolve database of organization %q: %w", org.CanonicalName, err)
	}
	org.Locator = loc
	return org, nil
}

func (s *Service) validateCreate(input CreateInput) (canonical, email string, err error) {
	fields := FieldErrors{}

	if strings.TrimSpace(input.Name) == "" {
		fields.add("organization_name", "is required")
	} else if _, nameErr := orgspace.DatabaseName(s.rule.DatabasePrefix(), input.Name); nameErr != nil {
		fields.add("organization_name", nameErr.Error())
	} else {
		canonical, _ = orgspace.Canonicalize(input.Name)
	}

	email = validateEmail(fields, input.AdminEmail)
	validatePassword(fields, input.AdminPassword)

	if len(fields) > 0 {
		return "", "", &ValidationError{Fields: fields}
	}
	return canonical, email, nil
}

func validateEmail(fields FieldErrors, raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		fields.add("email", "is required")
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		fields.add("email", "must be a valid email address")
		return ""
	}
	return email
}

func validatePassword(fields FieldErrors, password string) {
	switch {
	case password == "":
		fields.add("password", "is required")
	case len(password) < platformauth.MinPasswordLength:
		fields.add("password", platformauth.ErrPasswordTooShort.Error())
	case len(password) > 72:
		fields.add("password", platformauth.ErrPasswordTooLong.Error())
	}
}
