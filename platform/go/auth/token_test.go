package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestTokensIssueAndVerify(t *testing.T) {
	t.Parallel()

	tokens := newTestTokens(t)
	token, expiresAt, err := tokens.Issue(Principal{ID: "u1", Email: "admin@acme.test", IsAdmin: true, Organization: "acme_corp"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "admin@acme.test", claims.Subject)
	require.Equal(t, "u1", claims.PrincipalID)
	require.True(t, claims.IsAdmin)
	require.Equal(t, "acme_corp", claims.Organization)
	require.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestTokensRejectInvalid(t *testing.T) {
	t.Parallel()

	tokens := newTestTokens(t)

	other, err := NewTokens(TokenConfig{Secret: "other-secret", TTL: time.Minute})
	require.NoError(t, err)
	foreign, _, err := other.Issue(Principal{ID: "u1", Email: "a@b.test"})
	require.NoError(t, err)

	expired := newTestTokens(t)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := expired.Issue(Principal{ID: "u1", Email: "a@b.test"})
	require.NoError(t, err)

	hs512, err := NewTokens(TokenConfig{Secret: "test-secret", Algorithm: "HS512", TTL: time.Minute})
	require.NoError(t, err)
	wrongAlg, _, err := hs512.Issue(Principal{ID: "u1", Email: "a@b.test"})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@b.test"},
		PrincipalID:      "u1",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret":    foreign,
		"expired":         stale,
		"wrong algorithm": wrongAlg,
		"alg none":        unsigned,
		"garbage":         "not-a-token",
		"truncated":       strings.SplitN(foreign, ".", 2)[0],
	} {
		_, err := tokens.Verify(raw)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestNewTokensValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewTokens(TokenConfig{TTL: time.Minute})
	require.Error(t, err)

	_, err = NewTokens(TokenConfig{Secret: "s", Algorithm: "RS256", TTL: time.Minute})
	require.Error(t, err)

	_, err = NewTokens(TokenConfig{Secret: "s", Algorithm: "hs384"})
	require.Error(t, err)

	tokens, err := NewTokens(TokenConfig{Secret: "s", Algorithm: "hs384", TTL: time.Minute})
	require.NoError(t, err)
	require.Equal(t, "HS384", tokens.method.Alg())
}
