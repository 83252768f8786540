package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_market/internal/auth"
	userdomain "github.com/fjod/go_market/internal/user/domain"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userTypeKey contextKey = "user_type"
)

// AuthMiddleware validates the bearer token and stores the caller's
// identity in the request context.
func AuthMiddleware(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := issuer.ParseToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, userTypeKey, claims.UserType)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree to one marketplace side.
func RequireRole(userType userdomain.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if callerType(r.Context()) != userType {
				respondError(w, http.StatusForbidden, "forbidden", "this endpoint requires a "+string(userType)+" account")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func callerType(ctx context.Context) userdomain.UserType {
	if t, ok := ctx.Value(userTypeKey).(userdomain.UserType); ok {
		return t
	}
	return ""
}
