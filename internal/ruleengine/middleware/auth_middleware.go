package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const AuthenticatedCallerContextKey = ContextKey("authenticatedCaller")

// AuthenticatedCaller identifies the collaborator behind an API request,
// typically the remote config-sync service or an event bridge.
type AuthenticatedCaller struct {
	Subject string
}

// AuthMiddleware authenticates requests with an HMAC-signed bearer token
// issued by the backend the engine syncs against.
func AuthMiddleware(accessSecret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(accessSecret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			caller := AuthenticatedCaller{}
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, subErr := claims.GetSubject(); subErr == nil {
					caller.Subject = sub
				}
			}

			ctx := context.WithValue(r.Context(), AuthenticatedCallerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext extracts the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (AuthenticatedCaller, bool) {
	caller, ok := ctx.Value(AuthenticatedCallerContextKey).(AuthenticatedCaller)
	return caller, ok
}
