package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

// inMemoryRepo is a minimal in-memory impl of Repository for tests. Uniqueness is enforced under the lock, like
// the registry constraint.
type inMemoryRepo struct {
	mu      sync.Mutex
	data    map[string]Organization
	touched []uuid.UUID
}

func newInMemoryRepo() *inMemoryRepo {
	return &inMemoryRepo{data: make(map[string]Organization)}
}

func (r *inMemoryRepo) Create(ctx context.Context, org Organization) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[org.CanonicalName]; exists {
		return Organization{}, ErrDuplicateTenant
	}
	org.UpdatedAt = org.CreatedAt
	r.data[org.CanonicalName] = org
	return org, nil
}

func (r *inMemoryRepo) FindByCanonicalName(ctx context.Context, canonical string) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.data[canonical]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (r *inMemoryRepo) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return ListResult{}, errors.New("not implemented")
}

func (r *inMemoryRepo) CanonicalNames(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.data))
	for name := range r.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *inMemoryRepo) Touch(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	return nil
}

// stubProvisioner derives locators like the real one and records every call.
type stubProvisioner struct {
	rule      orgspace.Rule
	err       error
	status    ProvisionStatus
	databases []string
	calls     atomic.Int32
}

func (p *stubProvisioner) Provision(ctx context.Context, name string) (orgspace.Locator, error) {
	p.calls.Add(1)
	if p.err != nil {
		return orgspace.Locator{}, p.err
	}
	return p.rule.Derive(name)
}

func (p *stubProvisioner) Check(ctx context.Context, name string) (ProvisionStatus, error) {
	return p.status, p.err
}

func (p *stubProvisioner) Databases(ctx context.Context) ([]string, error) {
	return p.databases, p.err
}

type stubBootstrapper struct {
	mu     sync.Mutex
	err    error
	calls  []string
	admins map[string]int
}

func (b *stubBootstrapper) Bootstrap(ctx context.Context, loc orgspace.Locator, email, password string) (Principal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, loc.Database+"|"+email)
	if b.err != nil {
		return Principal{}, b.err
	}
	if b.admins == nil {
		b.admins = map[string]int{}
	}
	b.admins[loc.Database]++
	return Principal{ID: uuid.New(), Email: email, IsAdmin: true, IsActive: true}, nil
}

func (b *stubBootstrapper) Admins(ctx context.Context, loc orgspace.Locator) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admins[loc.Database], nil
}

var testRule = orgspace.Rule{Host: "db.internal", Port: 5432, User: "postgres", Password: "s3cret", SSLMode: "disable"}

type fixture struct {
	repo *inMemoryRepo
	prov *stubProvisioner
	boot *stubBootstrapper
	svc  *Service
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		repo: newInMemoryRepo(),
		prov: &stubProvisioner{rule: testRule},
		boot: &stubBootstrapper{},
	}
	f.svc = New(f.repo, f.prov, f.boot, testRule, zaptest.NewLogger(t))
	return f
}

func validInput(name string) CreateInput {
	return CreateInput{Name: name, AdminEmail: "Admin@Acme.test", AdminPassword: "correct horse"}
}

func TestRegisterHappyPath(t *testing.T) {
	f := newFixture(t)

	org, err := f.svc.Register(context.Background(), validInput("  Acme Corp "))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, org.ID)
	require.Equal(t, "Acme Corp", org.Name)
	require.Equal(t, "acme_corp", org.CanonicalName)
	require.Equal(t, "admin@acme.test", org.AdminEmail)
	require.Equal(t, "org_acme_corp", org.Locator.Database)
	require.NotContains(t, org.DatabaseURL, "s3cret")
	require.Equal(t, []string{"org_acme_corp|admin@acme.test"}, f.boot.calls)

	found, err := f.svc.Lookup(context.Background(), "ACME-corp")
	require.NoError(t, err)
	require.Equal(t, org.ID, found.ID)
	require.Equal(t, "s3cret", found.Locator.Password)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), CreateInput{Name: "acme; DROP DATABASE", AdminEmail: "nope", AdminPassword: "short"})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "organization_name")
	require.Contains(t, validationErr.Fields, "email")
	require.Contains(t, validationErr.Fields, "password")
	require.Zero(t, f.prov.calls.Load())
	require.Equal(t, "validation", ErrorCode(err))
}

func TestRegisterDuplicateSkipsProvisioning(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), validInput("Acme Corp"))
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), validInput("acme_corp"))
	require.ErrorIs(t, err, ErrDuplicateTenant)
	require.Equal(t, int32(1), f.prov.calls.Load())
	require.Len(t, f.boot.calls, 1)
}

func TestRegisterProvisionFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.prov.err = &ProvisionError{Organization: "acme_corp", Reason: ReasonCreateFailed, Err: errors.New("permission denied")}

	_, err := f.svc.Register(context.Background(), validInput("Acme Corp"))

	var provisionErr *ProvisionError
	require.ErrorAs(t, err, &provisionErr)
	require.Equal(t, ReasonCreateFailed, provisionErr.Reason)

	_, err = f.svc.Lookup(context.Background(), "Acme Corp")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, f.boot.calls)
}

func TestRegisterBootstrapFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.boot.err = errors.New("connection reset")

	org, err := f.svc.Register(context.Background(), validInput("Acme Corp"))

	var bootstrapErr *BootstrapError
	require.ErrorAs(t, err, &bootstrapErr)
	require.Equal(t, "acme_corp", bootstrapErr.Organization)
	require.NotEqual(t, uuid.Nil, org.ID)

	_, err = f.svc.Lookup(context.Background(), "Acme Corp")
	require.NoError(t, err)

	f.boot.err = nil
	principal, err := f.svc.Rebootstrap(context.Background(), "Acme Corp", "admin@acme.test", "correct horse")
	require.NoError(t, err)
	require.True(t, principal.IsAdmin)
	require.Equal(t, []uuid.UUID{org.ID}, f.repo.touched)
}

func TestRebootstrapRefusesWhenAdminExists(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), validInput("Acme Corp"))
	require.NoError(t, err)

	_, err = f.svc.Rebootstrap(context.Background(), "Acme Corp", "intruder@acme.test", "correct horse")

	var bootstrapErr *BootstrapError
	require.ErrorAs(t, err, &bootstrapErr)
	require.ErrorIs(t, err, ErrPrincipalExists)
	require.Equal(t, "acme_corp", bootstrapErr.Organization)
	require.Equal(t, []string{"org_acme_corp|admin@acme.test"}, f.boot.calls)
	require.Empty(t, f.repo.touched)
}

func TestRegisterConcurrentSameNameHasOneWinner(t *testing.T) {
	f := newFixture(t)

	spellings := []string{"Acme Corp", "acme-corp", "ACME_CORP", "acme  corp", "Acme Corp"}
	var (
		wins       atomic.Int32
		duplicates atomic.Int32
	)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		name := spellings[i%len(spellings)]
		g.Go(func() error {
			_, err := f.svc.Register(context.Background(), validInput(name))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrDuplicateTenant):
				duplicates.Add(1)
			default:
				return fmt.Errorf("register %q: %w", name, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(19), duplicates.Load())
	require.Len(t, f.boot.calls, 1)

	names, err := f.repo.CanonicalNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"acme_corp"}, names)
}

func TestLookupUnknownAndUncanonicalizable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Lookup(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Lookup(context.Background(), "!!!")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOrphansAndCheck(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), validInput("Acme Corp"))
	require.NoError(t, err)

	f.prov.databases = []string{"org_acme_corp", "org_lost_inc"}
	orphans, err := f.svc.Orphans(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"org_lost_inc"}, orphans)

	f.prov.status = ProvisionStatus{DatabaseExists: true, SchemaReady: true}
	res, err := f.svc.Check(context.Background(), "Lost Inc")
	require.NoError(t, err)
	require.False(t, res.Registered)
	require.True(t, res.DatabaseExists)
	require.Equal(t, "org_lost_inc", res.DatabaseName)
	require.False(t, res.AdminReady)

	res, err = f.svc.Check(context.Background(), "Acme Corp")
	require.NoError(t, err)
	require.True(t, res.Registered)
	require.True(t, res.AdminReady)
}

func TestCheckReportsMissingAdmin(t *testing.T) {
	f := newFixture(t)
	f.boot.err = errors.New("connection reset")

	_, err := f.svc.Register(context.Background(), validInput("Acme Corp"))
	require.Error(t, err)

	f.prov.status = ProvisionStatus{DatabaseExists: true, SchemaReady: true}
	res, err := f.svc.Check(context.Background(), "Acme Corp")
	require.NoError(t, err)
	require.True(t, res.Registered)
	require.True(t, res.SchemaReady)
	require.False(t, res.AdminReady)
}

func TestWithMetricsCountsOutcomes(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	svc := WithMetrics(reg, f.svc)

	_, err := svc.Register(context.Background(), validInput("Acme Corp"))
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), validInput("Acme Corp"))
	require.ErrorIs(t, err, ErrDuplicateTenant)
	_, err = svc.Lookup(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	calls, err := testutil.GatherAndCount(reg, "service_organizations_call_total")
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	errs, err := testutil.GatherAndCount(reg, "service_organizations_error_total")
	require.NoError(t, err)
	require.Equal(t, 2, errs)

	mw := svc.(*mwMetrics)
	require.Equal(t, float64(1), testutil.ToFloat64(mw.red.Errors().WithLabelValues("register", "duplicate")))
}
