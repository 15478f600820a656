// Package middleware provides HTTP middleware for the conversation service.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/capitalize-ai/retention-chat/internal/auth"
	"github.com/capitalize-ai/retention-chat/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
	// SubscriptionIDKey is the context key for subscription ID.
	SubscriptionIDKey ContextKey = "subscription_id"
)

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := auth.Parse(jwtSecret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			recordUser(r.Context(), claims.Subject)

			// Add claims to context
			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, SubscriptionIDKey, claims.SubscriptionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetSubscriptionID gets subscription ID from context.
func GetSubscriptionID(ctx context.Context) string {
	if v, ok := ctx.Value(SubscriptionIDKey).(string); ok {
		return v
	}
	return ""
}

// writeError writes the failure envelope the conversation service uses.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Fail(message))
}
