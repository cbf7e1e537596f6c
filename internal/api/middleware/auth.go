package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/edvin/nodewatch/internal/api/response"
)

// BearerAuth returns a middleware that checks the Authorization header
// against a static token. An empty configured token disables the routes it
// guards entirely rather than opening them up. Comparison is constant-time
// over digests so token length is not observable either.
func BearerAuth(token string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, "endpoint disabled")
				return
			}

			scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				response.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			got := sha256.Sum256([]byte(strings.TrimSpace(value)))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				response.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
