package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// UserContextKey is the key for user data in context
type UserContextKey struct{}

var ErrNoUserContext = errors.New("user context not found")

// HTTPMiddleware rejects requests without a valid bearer token and stores the UserContext on the request context
func HTTPMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r.Header.Get("Authorization"))
			if token == "" {
				writeUnauthenticated(w)
				return
			}

			userCtx, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				writeUnauthenticated(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userCtx)))
		})
	}
}

// extractToken extracts the token from "Bearer <token>" format
func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithUser returns a copy of ctx carrying userCtx
func WithUser(ctx context.Context, userCtx *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey{}, userCtx)
}

// GetUserFromContext retrieves user context from the context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	userCtx, ok := ctx.Value(UserContextKey{}).(*UserContext)
	if !ok || userCtx == nil {
		return nil, ErrNoUserContext
	}
	return userCtx, nil
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthenticated"})
}
