package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

type claimsKey struct{}

// GetClaims retrieves the validated Claims from a request context, or nil.
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// WithClaims injects claims into a context. Exposed for tests.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// Middleware enforces bearer-token authentication on every request.
// Missing or invalid tokens are rejected with 401 before any handler runs;
// scope checks happen later, per operation.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			unauthorized(w, "missing bearer token")
			return
		}

		claims, err := v.Verify(token)
		if err != nil {
			unauthorized(w, "token validation failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  "unauthorized",
		"detail": detail,
	})
}
