package middleware

import (
	"context"
	"net/http"
	"strings"
)

const userIDContextKey contextKey = "user_id"

// Auth guards /v1/ routes with a static bearer token and requires the
// caller to identify itself through the X-User-Id header. The user id
// is stored on the request context for handlers.
func Auth(requiredToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			if requiredToken != "" {
				authorization := r.Header.Get("Authorization")
				const prefix = "Bearer "
				if !strings.HasPrefix(authorization, prefix) {
					writeUnauthorized(w, r, "authentication required")
					return
				}
				token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
				if token == "" || token != requiredToken {
					writeUnauthorized(w, r, "authentication required")
					return
				}
			}

			userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
			if userID == "" {
				writeUnauthorized(w, r, "user identification required")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated caller id, or "" outside of
// guarded routes.
func GetUserID(ctx context.Context) string {
	value, _ := ctx.Value(userIDContextKey).(string)
	return value
}

// WithUserID injects a caller id the way Auth does, for handler tests
// that bypass the middleware chain.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"` + message + `"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}
