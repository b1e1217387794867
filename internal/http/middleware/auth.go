package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth requires requiredToken as a bearer token or apikey header on every
// route except /healthz; either one matching is enough. An empty token
// disables the check.
func Auth(requiredToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredToken == "" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			// Browser clients send a session JWT as bearer next to the apikey.
			candidates := []string{
				bearerToken(r.Header.Get("Authorization")),
				strings.TrimSpace(r.Header.Get("apikey")),
			}
			for _, token := range candidates {
				if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(requiredToken)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			WriteError(w, r, http.StatusUnauthorized, "authentication required")
		})
	}
}

func bearerToken(authorization string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
}
