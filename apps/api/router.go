package main

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	authhandler "github.com/zenGate-Global/palmyra-orgs/domains/auth/be/handler"
	authservice "github.com/zenGate-Global/palmyra-orgs/domains/auth/be/service"
	orghandler "github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/handler"
	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/httpx"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/palmyra-orgs/platform/go/middleware"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/problem"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	logger         *zap.Logger
	requestTimeout time.Duration
	cors           platformmiddleware.CORSOptions
	master         pinger
	organizations  orghandler.Registry
	auth           authservice.Authenticator
	tokens         *platformauth.Tokens
	spec           *openapi3.T
	gatherer       prometheus.Gatherer
}

func newRouter(deps routerDeps) chi.Router {
	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(deps.requestTimeout),
		platformmiddleware.CORS(deps.cors),
	)
	rootRouter.Use(platformlogging.RequestLogger(deps.logger))

	rootRouter.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Palmyra Organizations"})
	})
	rootRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	rootRouter.Get("/readyz", readinessHandler(deps.master, deps.logger))
	rootRouter.Handle("/metrics", promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{}))

	registerDocsRoutes(rootRouter, deps.spec, deps.logger)

	auth := authhandler.New(deps.auth, deps.logger)
	validator := platformmiddleware.SpecValidator(deps.spec)

	// Registration and login ignore Authorization so a stale token never blocks re-login.
	rootRouter.Group(func(r chi.Router) {
		r.Use(platformmiddleware.RequestTrace)
		r.Use(validator)

		orghandler.New(deps.organizations, deps.logger).Routes(r)
		auth.Routes(r)
	})

	rootRouter.Group(func(r chi.Router) {
		r.Use(buildAuthMiddleware(deps.tokens))
		r.Use(platformmiddleware.RequestTrace)
		r.Use(validator)

		auth.SessionRoutes(r)
	})

	return rootRouter
}

func readinessHandler(master pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := master.Ping(ctx); err != nil {
			platformlogging.FromRequest(r, logger).Warn("master database not ready", zap.Error(err))
			problem.Write(w, problem.New(http.StatusServiceUnavailable, "Service unavailable", "master database unreachable"))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
