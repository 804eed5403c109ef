package auth

import (
	"context"
	"net/http"
	"time"

	"ms-venues/internal/apperrors"
	"ms-venues/internal/logger"
	"ms-venues/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Identity is what a verified bearer token tells us about the caller.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// Middleware rejects requests without a valid bearer token and stores the subject in the request context.
func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("auth_rejected", r.Method+" "+r.URL.Path+": "+err.Error())
				utils.RespondError(w, r, log, apperrors.Unauthorized(err.Error()))
				return
			}

			identity, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("auth_rejected", r.Method+" "+r.URL.Path+": "+err.Error())
				utils.RespondError(w, r, log, apperrors.Unauthorized("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, identity.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated subject, or "" outside the middleware.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
