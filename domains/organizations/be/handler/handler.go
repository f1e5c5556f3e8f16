package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/httpx"
	platformlogging "github.com/zenGate-Global/palmyra-orgs/platform/go/logging"
	"github.com/zenGate-Global/palmyra-orgs/platform/go/problem"
)

type operation string

const (
	createOperation operation = "orgCreate"
	getOperation    operation = "orgGet"
)

// Registry is the subset of the organization service the HTTP layer calls.
type Registry interface {
	Register(ctx context.Context, input service.CreateInput) (service.Organization, error)
	Lookup(ctx context.Context, name string) (service.Organization, error)
}

// CreateRequest is the body of POST /org/create.
type CreateRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
}

// GetRequest is the body of POST /org/get.
type GetRequest struct {
	OrganizationName string `json:"organization_name"`
}

// Organization is the public view of a registry entry.
type Organization struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AdminEmail string    `json:"admin_email"`
	CreatedAt  time.Time `json:"created_at"`
}

// Handler wires the organization service to HTTP.
type Handler struct {
	svc    Registry
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Registry, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("organizations service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the organization endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/org/create", h.Create)
	r.Post("/org/get", h.Get)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", err.Error(), problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	org, err := h.svc.Register(r.Context(), service.CreateInput{
		Name:          body.OrganizationName,
		AdminEmail:    body.Email,
		AdminPassword: body.Password,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, createOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPIOrganization(org))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	var body GetRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", err.Error(), problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	org, err := h.svc.Lookup(r.Context(), body.OrganizationName)
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPIOrganization(org))
}

func toAPIOrganization(org service.Organization) Organization {
	return Organization{
		ID:         org.ID.String(),
		Name:       org.Name,
		AdminEmail: org.AdminEmail,
		CreatedAt:  org.CreatedAt,
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op operation) {
	status, title, detail, problemType, fields := classifyError(err)

	logger := platformlogging.FromContextOr(ctx, h.logger)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("organizations operation failed", append(fieldsForLog, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("organization not found", append(fieldsForLog, zap.Error(err))...)
	default:
		logger.Warn("organizations request rejected", append(fieldsForLog, zap.Error(err))...)
	}

	problem.Write(w, problem.Build(title, detail, problemType, status, fields))
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors problem.FieldErrors) {
	var (
		validationErr *service.ValidationError
		provisionErr  *service.ProvisionError
		bootstrapErr  *service.BootstrapError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problem.TypeValidation,
			problem.FieldErrors(validationErr.Fields)
	case errors.Is(err, service.ErrDuplicateTenant):
		return http.StatusBadRequest,
			"Organization already exists",
			"an organization with this name already exists",
			problem.TypeConflict,
			nil
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"organization not found",
			problem.TypeNotFound,
			nil
	case errors.As(err, &provisionErr):
		return http.StatusInternalServerError,
			"Provisioning failed",
			"the organization database could not be prepared",
			problem.TypeInternal,
			nil
	case errors.As(err, &bootstrapErr):
		return http.StatusInternalServerError,
			"Bootstrap failed",
			"the organization was created but its admin could not be",
			problem.TypeInternal,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problem.TypeInternal,
			nil
	}
}
