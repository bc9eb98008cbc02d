package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/http/respond"
	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/storage"
)

type contextKey int

const (
	userKey contextKey = iota
	tokenKey
)

// Auth returns middleware that resolves a bearer token into an authenticated
// identity. A token must pass two checks: its signature and expiry, and its
// continued presence in the user's session list. Signature validity alone is
// insufficient after a logout or account deletion.
func Auth(store storage.UserStore, tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "please authenticate")
				return
			}

			userID, err := tokens.Parse(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "please authenticate")
				return
			}

			user, err := store.GetUser(r.Context(), userID)
			if err != nil || !user.HasSessionToken(token) {
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					respond.Error(w, http.StatusInternalServerError, "something went wrong")
					return
				}
				respond.Error(w, http.StatusUnauthorized, "please authenticate")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user attached by Auth.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// TokenFrom returns the raw bearer token attached by Auth. Logout needs the
// exact string to remove the right session.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return "", false
	}
	return token, true
}
