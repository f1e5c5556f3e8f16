// Package cliapp opens the services orgctl commands operate on.
package cliapp

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"

	authservice "github.com/zenGate-Global/palmyra-orgs/domains/auth/be/service"
	orgservice "github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/config"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/setups"
)

// Services is what a command needs. Close must be called when the command is done.
type Services struct {
	Organizations orgservice.Registry
	Auth          authservice.Authenticator
	Close         func()
}

// Opener builds Services; commands receive one so tests can substitute in-memory services.
type Opener func(ctx context.Context) (*Services, error)

// FromEnvironment wires Services from the same environment variables the API server reads.
// Logs go to stderr so stdout stays parseable.
func FromEnvironment(ctx context.Context) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "orgctl",
		Level:     envOr("LOG_LEVEL", "warn"),
		Output:    zapcore.Lock(os.Stderr),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app, err := setups.Wire(ctx, setups.Options{Config: cfg, Component: "orgctl", Logger: logger})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &Services{
		Organizations: app.Organizations,
		Auth:          app.Auth,
		Close: func() {
			app.Close()
			_ = logger.Sync()
		},
	}, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
