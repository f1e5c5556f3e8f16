package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors returned by the service layer.
var (
	ErrNotFound        = errors.New("organization not found")
	ErrDuplicateTenant = errors.New("organization already exists")
	// ErrPrincipalExists is wrapped by BootstrapError when the admin email is already taken in the organization.
	ErrPrincipalExists = errors.New("principal already exists")
)

// FieldErrors maps an input field to the reasons it was rejected.
type FieldErrors map[string][]string

// ValidationError reports invalid input before any side effect happened.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (f FieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

// ProvisionReason tells which provisioning step failed.
type ProvisionReason string

const (
	ReasonCreateFailed     ProvisionReason = "create_failed"
	ReasonSchemaInitFailed ProvisionReason = "schema_init_failed"
)

// ProvisionError is returned when the organization database could not be created or initialized.
// No registry row exists when it is returned.
type ProvisionError struct {
	Organization string
	Reason       ProvisionReason
	Err          error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision organization %q: %s: %v", e.Organization, e.Reason, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// BootstrapError is returned when the initial admin could not be created. The organization database and, during
// registration, the registry row are left in place; `orgctl org bootstrap` retries.
type BootstrapError struct {
	Organization string
	Err          error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap organization %q: %v", e.Organization, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// ErrorCode classifies err for metrics labels.
func ErrorCode(err error) string {
	var (
		validationErr *ValidationError
		provisionErr  *ProvisionError
		bootstrapErr  *BootstrapError
	)
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.Is(err, ErrDuplicateTenant):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &provisionErr):
		return string(provisionErr.Reason)
	case errors.As(err, &bootstrapErr):
		return "bootstrap_failed"
	default:
		return "unknown"
	}
}
