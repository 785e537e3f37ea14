package middleware

import (
	"context"
	"net/http"
	"strings"

	"model_settings/internal/auth"
	"model_settings/internal/config"
	"model_settings/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

// Context keys for storing authentication data
const (
	UserClaimsKey ContextKey = "userClaims"
	UserIDKey     ContextKey = "userID"
)

// UserJWTMiddleware validates user tokens and, when requiredRoles is given,
// enforces that the token carries one of them
func UserJWTMiddleware(cfg *config.Config, requiredRoles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			// Remove "Bearer " prefix if present
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := auth.ValidateUserToken(tokenString, cfg)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if len(requiredRoles) > 0 {
				hasPermission := false
				for _, required := range requiredRoles {
					if claims.HasRole(required) {
						hasPermission = true
						break
					}
				}
				if !hasPermission {
					utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose token lacks role. It must run after UserJWTMiddleware.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserClaims(r.Context())
			if !ok || !claims.HasRole(role) {
				utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserClaims retrieves the user claims from the request context
func GetUserClaims(ctx context.Context) (*auth.UserClaims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*auth.UserClaims)
	return claims, ok
}

// GetUserID retrieves the user ID from the request context
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// WithUserID stores a user id in ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
