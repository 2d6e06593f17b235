package httpapi

import (
	"net/http"
	"strings"

	"sensorium.org/internal/auth"
)

// publicPaths are reachable without a bearer token. Measurement ingestion
// authenticates with a sensor API key instead.
var publicPaths = map[string]bool{
	"/api/auth/register": true,
	"/api/auth/login":    true,
	"/api/measurements":  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
}

// withAuth authenticates bearer tokens on protected routes and binds the
// principal and raw token to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearerToken(r)
		p, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
