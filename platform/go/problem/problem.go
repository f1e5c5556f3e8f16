// Package problem renders RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"net/http"
)

// ContentType is the media type of problem documents.
const ContentType = "application/problem+json"

const (
	TypeValidation   = "https://tcg.land/problems/validation-error"
	TypeNotFound     = "https://tcg.land/problems/not-found"
	TypeConflict     = "https://tcg.land/problems/conflict"
	TypeUnauthorized = "https://tcg.land/problems/unauthorized"
	TypeForbidden    = "https://tcg.land/problems/forbidden"
	TypeInternal     = "https://tcg.land/problems/internal-error"
)

// FieldErrors maps a request field to the messages describing why it was rejected.
type FieldErrors map[string][]string

// Details is the problem document body.
type Details struct {
	Type   *string              `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail *string              `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// New builds a problem without a type URI.
func New(status int, title, detail string) Details {
	return Build(title, detail, "", status, nil)
}

// Build assembles a problem; empty detail and type are omitted from the document.
func Build(title, detail, problemType string, status int, fieldErrors FieldErrors) Details {
	problem := Details{
		Title:  title,
		Status: status,
	}

	if detail != "" {
		problem.Detail = &detail
	}
	if problemType != "" {
		problem.Type = &problemType
	}

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = &copied
	}

	return problem
}

// Write sends p with its status code.
func Write(w http.ResponseWriter, p Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
