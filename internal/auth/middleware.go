package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hamzaconcepts-eng/MMPS/internal/httputil"
)

type contextKey string

const (
	// UserIDKey is the context key for the token subject
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for email
	EmailKey contextKey = "email"
)

const tokenCookie = "token"

// Middleware validates the access token from the Authorization header or the
// token cookie and adds its claims to the request context.
func Middleware(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := tokenFromRequest(r)
			if err != nil {
				logger.Warn("no auth token found", "path", r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := verifier.Validate(raw)
			if err != nil {
				logger.Warn("invalid token", "error", err)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, EmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return ExtractBearerToken(header)
	}
	cookie, err := r.Cookie(tokenCookie)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingToken
	}
	return cookie.Value, nil
}

// GetUserID extracts the token subject from context
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok
}

// GetEmail extracts email from context
func GetEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}
