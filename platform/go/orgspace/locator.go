package orgspace

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Locator identifies one physical database on a PostgreSQL server.
type Locator struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnString renders the locator as a postgres:// URL including credentials.
func (l Locator) ConnString() string {
	return l.url(true).String()
}

// Redacted renders the locator without its password. This is the form persisted in the registry and logged.
func (l Locator) Redacted() string {
	return l.url(false).String()
}

func (l Locator) url(withPassword bool) *url.URL {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(l.Host, strconv.Itoa(l.Port)),
		Path:   "/" + l.Database,
	}
	switch {
	case withPassword && l.Password != "":
		u.User = url.UserPassword(l.User, l.Password)
	case l.User != "":
		u.User = url.User(l.User)
	}
	if l.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {l.SSLMode}}.Encode()
	}
	return u
}

// ParseLocator is the inverse of ConnString/Redacted.
func ParseLocator(raw string) (Locator, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("parse locator: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Locator{}, fmt.Errorf("parse locator: unsupported scheme %q", u.Scheme)
	}

	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Locator{}, fmt.Errorf("parse locator port: %w", err)
		}
	}

	loc := Locator{
		Host:     u.Hostname(),
		Port:     port,
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}
	if u.User != nil {
		loc.User = u.User.Username()
		loc.Password, _ = u.User.Password()
	}
	if loc.Host == "" || loc.Database == "" {
		return Locator{}, errors.New("parse locator: host and database are required")
	}
	return loc, nil
}

// Rule derives locators for organization databases from the server coordinates of the master database.
type Rule struct {
	Host          string
	Port          int
	User          string
	Password      string
	SSLMode       string
	Prefix        string
	AdminDatabase string
}

// Derive returns the locator of the organization's own database. It is a pure function of the name.
func (r Rule) Derive(name string) (Locator, error) {
	dbName, err := DatabaseName(r.Prefix, name)
	if err != nil {
		return Locator{}, err
	}
	return r.forDatabase(dbName), nil
}

// Admin returns the locator of the maintenance database used to issue CREATE DATABASE.
func (r Rule) Admin() Locator {
	admin := r.AdminDatabase
	if admin == "" {
		admin = "postgres"
	}
	return r.forDatabase(admin)
}

// Resolve turns a persisted (redacted) database URL back into a usable locator, re-attaching the configured
// password when the stored user matches the configured one.
func (r Rule) Resolve(databaseURL string) (Locator, error) {
	loc, err := ParseLocator(databaseURL)
	if err != nil {
		return Locator{}, err
	}
	if loc.User == "" {
		loc.User = r.User
	}
	if loc.Password == "" && loc.User == r.User {
		loc.Password = r.Password
	}
	return loc, nil
}

// DatabasePrefix returns the effective prefix for organization databases.
func (r Rule) DatabasePrefix() string {
	if r.Prefix == "" {
		return DefaultPrefix
	}
	return r.Prefix
}

func (r Rule) forDatabase(dbName string) Locator {
	port := r.Port
	if port == 0 {
		port = 5432
	}
	return Locator{
		Host:     r.Host,
		Port:     port,
		User:     r.User,
		Password: r.Password,
		Database: dbName,
		SSLMode:  r.SSLMode,
	}
}
