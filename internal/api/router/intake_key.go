package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const intakeKeyHeader = "X-Intake-Key"

// requireIntakeKey guards the intake endpoint with a shared key sent by the
// booking site's server. When expected is empty, the middleware is a no-op.
func requireIntakeKey(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(intakeKeyHeader))
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				http.Error(w, "invalid intake key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
