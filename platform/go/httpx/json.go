// Package httpx holds the JSON plumbing shared by the hand-written chi handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// ErrInvalidBody is returned for missing, oversized or malformed JSON bodies.
var ErrInvalidBody = errors.New("request body must be a JSON object with the documented fields")

// DecodeJSON decodes a single JSON object into dest, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrInvalidBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return ErrInvalidBody
	}
	return nil
}

// WriteJSON sends body with status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
