package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-orgs/contracts"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/config"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/palmyra-orgs/platform/go/middleware"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/setups"
)

type serverConfig struct {
	config.Shared
	Port            string        `env:"PORT" envDefault:"8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSMaxAge      time.Duration `env:"CORS_MAX_AGE" envDefault:"10m"`
}

func main() {
	ctx := context.Background()

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Shared.Validate(); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := setups.Wire(ctx, setups.Options{
		Config:     cfg.Shared,
		Component:  "api-server",
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		logger.Fatal("wire services", zap.Error(err))
	}
	defer app.Close()

	spec, err := contracts.Organizations()
	if err != nil {
		logger.Fatal("load openapi contract", zap.Error(err))
	}

	router := newRouter(routerDeps{
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
		cors:           platformmiddleware.CORSOptions{AllowedOrigins: cfg.CORSOrigins, MaxAge: cfg.CORSMaxAge},
		master:         app.Pool,
		organizations:  app.Organizations,
		auth:           app.Auth,
		tokens:         app.Tokens,
		spec:           spec,
		gatherer:       registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.RequestTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
