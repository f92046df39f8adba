package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// UserID extracts the authenticated user ID from a request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}

// WithUserID returns a context carrying the authenticated user ID.
// Exposed for handler tests.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Require rejects requests without a valid bearer token and stores the
// user ID in the request context.
func (t *Tokens) Require(onReject func(w http.ResponseWriter, code, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(header, "Bearer ") {
				onReject(w, "missing_token", "Authorization bearer token required")
				return
			}
			userID, err := t.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
			if err != nil {
				onReject(w, "invalid_token", "Token is invalid or expired")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
