package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenType is reported to clients alongside the access token.
const TokenType = "bearer"

// ErrInvalidToken covers bad signatures, unexpected algorithms, expired and malformed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of a session token. Subject carries the principal email.
type Claims struct {
	jwt.RegisteredClaims
	PrincipalID  string `json:"user_id"`
	IsAdmin      bool   `json:"is_admin"`
	Organization string `json:"org,omitempty"`
}

// Principal is what a token is issued for.
type Principal struct {
	ID           string
	Email        string
	IsAdmin      bool
	Organization string
}

// TokenConfig selects the HMAC secret, algorithm and lifetime of issued tokens.
type TokenConfig struct {
	Secret    string
	Algorithm string // HS256, HS384 or HS512; defaults to HS256
	TTL       time.Duration
}

// Tokens issues and verifies HMAC-signed JWTs.
type Tokens struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens validates cfg and returns a token service.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", cfg.Algorithm)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Tokens{secret: []byte(cfg.Secret), method: method, ttl: cfg.TTL, now: time.Now}, nil
}

// TTL is the lifetime applied to issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for p that expires after the configured TTL.
func (t *Tokens) Issue(p Principal) (string, time.Time, error) {
	if p.Email == "" || p.ID == "" {
		return "", time.Time{}, errors.New("principal id and email are required")
	}
	issuedAt := t.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(t.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PrincipalID:  p.ID,
		IsAdmin:      p.IsAdmin,
		Organization: p.Organization,
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, algorithm and expiry of raw and returns its claims.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{t.method.Alg()}))

	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
