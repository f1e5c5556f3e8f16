package orgspace

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1; longer identifiers are silently truncated by the server.
const MaxIdentifierLength = 63

// DefaultPrefix is prepended to every canonical name to form the physical database name.
const DefaultPrefix = "org_"

// ErrInvalidName is returned when an organization name cannot be turned into a safe database identifier.
var ErrInvalidName = errors.New("invalid organization name")

var (
	canonicalPattern = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)*$`)
	prefixPattern    = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Canonicalize folds an organization name into its canonical snake_case form.
// "Acme Corp", " acme-corp " and "ACME_CORP" all yield "acme_corp"; "Café" yields "cafe". Anything outside
// [a-z0-9] after folding is rejected rather than stripped so two distinct names never silently collide.
func Canonicalize(name string) (string, error) {
	folded := strings.ToLower(strings.TrimSpace(norm.NFKD.String(name)))
	if folded == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidName)
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	canonical := b.String()
	if !canonicalPattern.MatchString(canonical) {
		return "", fmt.Errorf("%w: %q may only contain letters, digits, spaces, hyphens and underscores", ErrInvalidName, name)
	}
	return canonical, nil
}

// DatabaseName returns the physical database name for an organization, e.g. org_acme_corp.
func DatabaseName(prefix, name string) (string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("invalid database prefix %q", prefix)
	}

	canonical, err := Canonicalize(name)
	if err != nil {
		return "", err
	}

	dbName := prefix + canonical
	if len(dbName) > MaxIdentifierLength {
		return "", fmt.Errorf("%w: database name %q exceeds %d bytes", ErrInvalidName, dbName, MaxIdentifierLength)
	}
	return dbName, nil
}
