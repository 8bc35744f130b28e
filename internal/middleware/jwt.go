package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
)

type contextKey string

const (
	UserKey     contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// TokenValidator is what the middleware needs from the user service.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, string, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle rejects the request with 401 unless it carries a valid bearer token,
// either in the Authorization header or in the token query parameter (browsers
// cannot set headers on a websocket handshake).
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			httpx.Error(w, apperr.ErrUnauthenticated, "missing authentication token")
			return
		}

		userID, username, err := am.validator.ValidateToken(tokenString)
		if err != nil || userID == "" {
			httpx.Error(w, apperr.ErrUnauthenticated, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, username)))
	})
}

// WithIdentity stores the authenticated identity in ctx.
func WithIdentity(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserKey, userID)
	return context.WithValue(ctx, UsernameKey, username)
}

// Identity returns the identity stored by Handle.
func Identity(ctx context.Context) (string, string, bool) {
	userID, ok := ctx.Value(UserKey).(string)
	username, ok2 := ctx.Value(UsernameKey).(string)
	return userID, username, ok && ok2 && userID != ""
}
