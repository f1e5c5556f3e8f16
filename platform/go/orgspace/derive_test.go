package orgspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expect      string
		expectError bool
	}{
		{name: "spaces become underscores", input: "Acme Corp", expect: "acme_corp"},
		{name: "hyphens become underscores", input: "acme-corp", expect: "acme_corp"},
		{name: "trims and collapses separators", input: "  Acme  --  Corp ", expect: "acme_corp"},
		{name: "already canonical", input: "acme_corp", expect: "acme_corp"},
		{name: "digits allowed", input: "Team 42", expect: "team_42"},
		{name: "strips diacritics", input: "Café Olé", expect: "cafe_ole"},
		{name: "folds fullwidth letters", input: "Ａｃｍｅ", expect: "acme"},
		{name: "empty", input: "   ", expectError: true},
		{name: "only separators", input: " - _ ", expectError: true},
		{name: "quote injection", input: `acme"; DROP DATABASE x; --`, expectError: true},
		{name: "punctuation", input: "acme.corp", expectError: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Canonicalize(tt.input)
			if tt.expectError {
				require.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expect, got)
		})
	}
}

func TestDatabaseNameIsStableAcrossEquivalentNames(t *testing.T) {
	t.Parallel()

	a, err := DatabaseName("", "Acme Corp")
	require.NoError(t, err)
	b, err := DatabaseName("", "acme-corp")
	require.NoError(t, err)

	require.Equal(t, "org_acme_corp", a)
	require.Equal(t, a, b)
}

func TestDatabaseNameBoundsLength(t *testing.T) {
	t.Parallel()

	_, err := DatabaseName("org_", strings.Repeat("a", MaxIdentifierLength-len("org_")))
	require.NoError(t, err)

	_, err = DatabaseName("org_", strings.Repeat("a", MaxIdentifierLength-len("org_")+1))
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestDatabaseNameRejectsBadPrefix(t *testing.T) {
	t.Parallel()

	_, err := DatabaseName("Org-", "acme")
	require.Error(t, err)
}
