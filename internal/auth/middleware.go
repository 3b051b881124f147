package auth

import (
	"context"
	"net/http"
)

type contextKey struct{}

var principalKey contextKey

// Middleware guards a route with access-token validation. A refresh token is
// rejected here no matter how fresh it is.
func Middleware(service *Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := service.SessionFromRequest(r)
		if principal == nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// ContextWithPrincipal attaches an authenticated principal to ctx.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the authenticated principal placed by
// Middleware, or nil outside a guarded route.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalKey).(*Principal)
	return principal
}
