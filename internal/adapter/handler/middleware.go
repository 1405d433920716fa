package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// AuthMiddleware guards the API with a static bearer token. An empty
// configured token disables the check (local development).
func AuthMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				header := r.Header.Get("Authorization")
				got, ok := strings.CutPrefix(header, "Bearer ")
				if !ok || got != token {
					writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// orgID extracts the tenant scope. Every data endpoint requires the
// caller to name its organization explicitly; there is no implicit
// default tenant.
func orgID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Org-Id"))
}

func actorID(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Actor-Id")); actor != "" {
		return actor
	}
	return "api"
}
