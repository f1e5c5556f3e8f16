// Package config loads the settings shared by the API server and orgctl from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/orgspace"
)

// Database locates the master registry database. Organization databases live on the same server.
type Database struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	Name     string `env:"NAME" envDefault:"master_org_db"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// Organizations controls how organization databases are named and created.
type Organizations struct {
	AdminDatabase  string `env:"ADMIN_DB_NAME" envDefault:"postgres"`
	DatabasePrefix string `env:"ORG_DB_PREFIX" envDefault:"org_"`
}

// Token configures session tokens.
type Token struct {
	SecretKey                string `env:"SECRET_KEY,required"`
	Algorithm                string `env:"ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
}

// Shared is embedded by every binary's config.
type Shared struct {
	MasterDB      Database `envPrefix:"MASTER_DB_"`
	Organizations Organizations
	Token         Token
}

// Load parses Shared from the process environment.
func Load() (Shared, error) {
	return LoadFrom(nil)
}

// LoadFrom parses Shared from environ, or from the process environment when environ is nil.
func LoadFrom(environ map[string]string) (Shared, error) {
	var cfg Shared
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Shared{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Shared{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Shared) Validate() error {
	if c.Token.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.Token.AccessTokenExpireMinutes)
	}
	switch strings.ToUpper(c.Token.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("ALGORITHM must be one of HS256, HS384, HS512, got %q", c.Token.Algorithm)
	}
	if _, err := orgspace.DatabaseName(c.Organizations.DatabasePrefix, "probe"); err != nil {
		return fmt.Errorf("ORG_DB_PREFIX: %w", err)
	}
	return nil
}

// MasterLocator addresses the registry database.
func (c Shared) MasterLocator() orgspace.Locator {
	return orgspace.Locator{
		Host:     c.MasterDB.Host,
		Port:     c.MasterDB.Port,
		User:     c.MasterDB.User,
		Password: c.MasterDB.Password,
		Database: c.MasterDB.Name,
		SSLMode:  c.MasterDB.SSLMode,
	}
}

// Rule derives organization database locators on the master server.
func (c Shared) Rule() orgspace.Rule {
	return orgspace.Rule{
		Host:          c.MasterDB.Host,
		Port:          c.MasterDB.Port,
		User:          c.MasterDB.User,
		Password:      c.MasterDB.Password,
		SSLMode:       c.MasterDB.SSLMode,
		Prefix:        c.Organizations.DatabasePrefix,
		AdminDatabase: c.Organizations.AdminDatabase,
	}
}

// TokenConfig converts the token settings for platformauth.NewTokens.
func (c Shared) TokenConfig() platformauth.TokenConfig {
	return platformauth.TokenConfig{
		Secret:    c.Token.SecretKey,
		Algorithm: c.Token.Algorithm,
		TTL:       time.Duration(c.Token.AccessTokenExpireMinutes) * time.Minute,
	}
}
