// Package contracts embeds the OpenAPI documents served and enforced by the API.
package contracts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed organizations.yaml
var organizationsYAML []byte

// Organizations parses and validates the organizations contract.
// Each call returns a fresh document so callers may mutate it.
func Organizations() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(organizationsYAML)
	if err != nil {
		return nil, fmt.Errorf("load organizations contract: %w", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate organizations contract: %w", err)
	}
	return spec, nil
}
