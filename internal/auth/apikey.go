// Package auth provides HTTP middleware for API key and JWT bearer authentication.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// APIKeyHeader is the header carrying the API key
	APIKeyHeader = "X-API-Key"

	principalContextKey contextKey = "principal"
)

// Principal identifies an authenticated caller.
type Principal struct {
	// Method is "api_key" or "jwt".
	Method  string
	Subject string
}

// Authenticator checks API keys and bearer tokens on incoming requests.
type Authenticator struct {
	apiKeys [][]byte
	jwt     *JWTManager
}

// NewAuthenticator creates an Authenticator. A nil jwt disables bearer
// tokens. With no keys and no jwt manager every request is let through.
func NewAuthenticator(apiKeys []string, jwt *JWTManager) *Authenticator {
	a := &Authenticator{jwt: jwt}
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			a.apiKeys = append(a.apiKeys, []byte(k))
		}
	}
	return a
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.apiKeys) > 0 || a.jwt != nil
}

// Middleware rejects requests without valid credentials with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		p, err := a.authenticate(r)
		if err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalContextKey, p)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*Principal, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		for _, k := range a.apiKeys {
			if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
				return &Principal{Method: "api_key", Subject: "api_key"}, nil
			}
		}
		return nil, errors.New("invalid API key")
	}

	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok && a.jwt != nil {
		claims, err := a.jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		return &Principal{Method: "jwt", Subject: claims.Subject}, nil
	}
	return nil, errors.New("missing credentials")
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="answer-retrieval"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Error(),
		"code":  http.StatusUnauthorized,
	})
}

// PrincipalFromContext returns the caller stored by Middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}
