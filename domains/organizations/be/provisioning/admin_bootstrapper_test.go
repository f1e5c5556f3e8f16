package provisioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/persistence"
)

type stubPrincipals struct {
	err    error
	params []persistence.CreatePrincipalParams
}

func (s *stubPrincipals) Create(ctx context.Context, loc orgspace.Locator, params persistence.CreatePrincipalParams) (persistence.PrincipalRecord, error) {
	s.params = append(s.params, params)
	if s.err != nil {
		return persistence.PrincipalRecord{}, s.err
	}
	return persistence.PrincipalRecord{
		ID:             params.ID,
		Email:          persistence.NormalizeEmail(params.Email),
		HashedPassword: params.HashedPassword,
		IsAdmin:        params.IsAdmin,
		IsActive:       params.IsActive,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (s *stubPrincipals) CountAdmins(ctx context.Context, loc orgspace.Locator) (int, error) {
	admins := 0
	for _, p := range s.params {
		if p.IsAdmin && s.err == nil {
			admins++
		}
	}
	return admins, nil
}

type stubHasher struct{ err error }

func (h stubHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "digest:" + password, nil
}

var bootstrapLocator = orgspace.Locator{Host: "localhost", Port: 5432, User: "postgres", Database: "org_acme_corp"}

func TestAdminBootstrapperCreatesActiveAdmin(t *testing.T) {
	principals := &stubPrincipals{}
	b := NewAdminBootstrapper(principals, stubHasher{})

	p, err := b.Bootstrap(context.Background(), bootstrapLocator, "Admin@Acme.test", "secret123")
	require.NoError(t, err)
	require.True(t, p.IsAdmin)
	require.True(t, p.IsActive)
	require.Equal(t, "admin@acme.test", p.Email)

	require.Len(t, principals.params, 1)
	require.Equal(t, "digest:secret123", principals.params[0].HashedPassword)
	require.True(t, principals.params[0].IsAdmin)
}

func TestAdminBootstrapperWrapsFailures(t *testing.T) {
	testCases := []struct {
		name       string
		principals *stubPrincipals
		hasher     stubHasher
		wantIs     error
	}{
		{
			name:       "duplicate email",
			principals: &stubPrincipals{err: persistence.ErrPrincipalConflict},
			wantIs:     service.ErrPrincipalExists,
		},
		{
			name:       "hash failure",
			principals: &stubPrincipals{},
			hasher:     stubHasher{err: platformauth.ErrPasswordTooShort},
			wantIs:     platformauth.ErrPasswordTooShort,
		},
		{
			name:       "connection failure",
			principals: &stubPrincipals{err: &persistence.ConnectionError{Database: "org_acme_corp", Err: errors.New("refused")}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewAdminBootstrapper(tc.principals, tc.hasher)
			_, err := b.Bootstrap(context.Background(), bootstrapLocator, "admin@acme.test", "secret123")

			var bootstrapErr *service.BootstrapError
			require.ErrorAs(t, err, &bootstrapErr)
			if tc.wantIs != nil {
				require.ErrorIs(t, err, tc.wantIs)
			}
		})
	}
}

func TestLikeEscaper(t *testing.T) {
	require.Equal(t, `org\_`, likeEscaper.Replace("org_"))
	require.Equal(t, `a\%b\\`, likeEscaper.Replace(`a%b\`))
}

func TestAdminBootstrapperCountsAdmins(t *testing.T) {
	principals := &stubPrincipals{}
	b := NewAdminBootstrapper(principals, stubHasher{})

	n, err := b.Admins(context.Background(), bootstrapLocator)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = b.Bootstrap(context.Background(), bootstrapLocator, "admin@acme.test", "secret123")
	require.NoError(t, err)

	n, err = b.Admins(context.Background(), bootstrapLocator)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
