package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-orgs/domains/auth/be/service"
	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/httpx"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/problem"
)

// OrganizationQueryParam names the organization an admin logs into.
const OrganizationQueryParam = "organization_name"

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of an authenticated principal.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Me describes the caller of GET /admin/me.
type Me struct {
	Email        string `json:"email"`
	UserID       string `json:"user_id"`
	IsAdmin      bool   `json:"is_admin"`
	Organization string `json:"organization,omitempty"`
}

// Handler exposes admin authentication over HTTP.
type Handler struct {
	svc    service.Authenticator
	logger *zap.Logger
}

func New(svc service.Authenticator, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("auth service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts /admin/login on r. Login must stay reachable with a stale token, so r carries no session middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/admin/login", h.AdminLogin)
}

// SessionRoutes mounts the admin-only /admin/me on r, which must already verify session tokens.
func (h *Handler) SessionRoutes(r chi.Router) {
	r.With(platformauth.RequireRole(platformauth.RoleAdmin)).Get("/admin/me", h.Me)
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var organization string
	if err := runtime.BindQueryParameter("form", true, true, OrganizationQueryParam, r.URL.Query(), &organization); err != nil {
		problem.Write(w, problem.Build("Invalid query parameter", err.Error(), problem.TypeValidation, http.StatusBadRequest,
			problem.FieldErrors{OrganizationQueryParam: {err.Error()}}))
		return
	}

	var body LoginRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", err.Error(), problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	session, err := h.svc.AdminLogin(r.Context(), organization, body.Email, body.Password)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresAt:   session.ExpiresAt,
		User: User{
			ID:      session.Principal.ID.String(),
			Email:   session.Principal.Email,
			IsAdmin: session.Principal.IsAdmin,
		},
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil {
		problem.Write(w, problem.Build("Unauthorized", "missing credentials", problem.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, Me{
		Email:        creds.Email,
		UserID:       creds.ID,
		IsAdmin:      creds.IsAdmin,
		Organization: creds.Organization,
	})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := platformlogging.FromContextOr(ctx, h.logger)

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		problem.Write(w, problem.Build("Unauthorized", "incorrect email or password", problem.TypeUnauthorized, http.StatusUnauthorized, nil))
	case errors.Is(err, service.ErrNotAdmin):
		problem.Write(w, problem.Build("Forbidden", "user is not an admin", problem.TypeForbidden, http.StatusForbidden, nil))
	case errors.Is(err, service.ErrTenantNotFound):
		problem.Write(w, problem.Build("Resource not found", "organization not found", problem.TypeNotFound, http.StatusNotFound, nil))
	default:
		logger.Error("admin login failed", zap.Error(err))
		problem.Write(w, problem.Build("Internal server error", "an unexpected error occurred", problem.TypeInternal, http.StatusInternalServerError, nil))
	}
}
