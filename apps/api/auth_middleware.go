package main

import (
	"net/http"

	platformauth "github.com/zenGate-Global/palmyra-orgs/platform/go/auth"
)

// buildAuthMiddleware verifies session tokens issued by /admin/login. Requests without a token stay anonymous.
func buildAuthMiddleware(tokens *platformauth.Tokens) func(http.Handler) http.Handler {
	return platformauth.JWT(platformauth.TokenVerifier(tokens), platformauth.DefaultCredentialExtractor)
}
