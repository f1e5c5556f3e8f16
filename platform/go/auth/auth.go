package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/problem"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "PALMYRA_USER_CREDENTIALS"
)

// RoleAdmin gates organization administration endpoints.
const RoleAdmin = "admin"

type UserCredentials struct {
	ID           string
	Email        string
	IsAdmin      bool
	Organization string
}

func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*UserCredentials)
	return u, ok
}

// WithUser stores creds on ctx, as the JWT middleware does.
func WithUser(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

// VerifyFunc validates the incoming JWT and returns its claims.
type VerifyFunc func(ctx context.Context, token string) (*Claims, error)

// ExtractFunc converts claims into UserCredentials.
type ExtractFunc func(claims *Claims) (*UserCredentials, error)

// JWT parses the request and sets the context credentials using the provided verify/extract functions.
// Requests without a bearer token pass through anonymously; RequireRole rejects them where it matters.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractJWTToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description=%q`, err.Error()))
				writeUnauthorized(w, "invalid or expired session token")
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				writeUnauthorized(w, "invalid session claims")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), creds)))
		})
	}
}

// TokenVerifier returns a VerifyFunc backed by HMAC token verification.
func TokenVerifier(tokens *Tokens) VerifyFunc {
	return func(_ context.Context, token string) (*Claims, error) {
		return tokens.Verify(token)
	}
}

// DefaultCredentialExtractor converts session claims into UserCredentials.
func DefaultCredentialExtractor(claims *Claims) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}
	if claims.PrincipalID == "" {
		return nil, errors.New("missing user_id claim")
	}

	return &UserCredentials{
		ID:           claims.PrincipalID,
		Email:        claims.Subject,
		IsAdmin:      claims.IsAdmin,
		Organization: claims.Organization,
	}, nil
}

func ExtractJWTToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	// Case-insensitive prefix match.
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}

// RequireRole is a helper to gate endpoints inside handlers if necessary:
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := UserFromContext(r.Context())
			if !ok || creds == nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				writeUnauthorized(w, "authentication required")
				return
			}

			switch role {
			case RoleAdmin:
				if !creds.IsAdmin {
					writeForbidden(w, "admin role required")
					return
				}
			default:
				writeForbidden(w, fmt.Sprintf("role %q required", role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	problem.Write(w, problem.Build("Unauthorized", detail, problem.TypeUnauthorized, http.StatusUnauthorized, nil))
}

func writeForbidden(w http.ResponseWriter, detail string) {
	problem.Write(w, problem.Build("Forbidden", detail, problem.TypeForbidden, http.StatusForbidden, nil))
}
