package http

import (
	"context"
	"net/http"
	"strings"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var userCtxKey = &contextKey{"user_id"}

// TokenValidator est le collaborateur Authenticator : il rend l'identité
// authentifiée ou signale "unauthenticated". Le reste ne nous regarde pas.
type TokenValidator interface {
	Validate(token string) (userID string, err error)
}

// AuthMiddleware exige un Bearer token valide sur toutes les routes posts.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			userID, err := validator.Validate(tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext récupère l'identité injectée par le middleware.
func UserFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(userCtxKey).(string)
	return raw
}
