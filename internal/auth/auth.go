// Package auth hashes passwords and manages the bearer tokens that gate
// every user-owned resource. Tokens are opaque random ids persisted in the
// record store together with their owner and absolute expiry.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// TokenIDKey is the context key holding the presented token id.
const TokenIDKey ContextKey = "tokenID"

// TokenHeader is the request header carrying the token id.
const TokenHeader = "token"

// TokenFromRequest reads the token id from the token header, falling back
// to an "Authorization: Bearer <id>" header.
func TokenFromRequest(request *http.Request) string {
	if token := strings.TrimSpace(request.Header.Get(TokenHeader)); token != "" {
		return token
	}

	authorization := request.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(authorization, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	return ""
}

// TokenFromContext returns the token id stored by RequireToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenIDKey).(string)
	return token
}

// RequireToken rejects requests without a token with 403 and stores the
// token id in the request context. Validity and ownership are checked by
// the services, which know the owner being accessed.
func RequireToken(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		token := TokenFromRequest(request)
		if token == "" {
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(response).Encode(map[string]string{"Error": InvalidTokenMessage})
			return
		}

		ctx := context.WithValue(request.Context(), TokenIDKey, token)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}
