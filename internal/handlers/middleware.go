package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taskapp/accounts/internal/auth"
	"github.com/taskapp/accounts/internal/services"
)

// RequireAuth enforces bearer-token authentication. The token signature is
// verified first, then the decoded subject must resolve to a user that still
// lists the exact token as a live session; signature validity alone is not
// enough because revoked tokens stay cryptographically valid. On success the
// user and the raw token are attached to the request context.
func RequireAuth(accounts *services.AccountService, jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication failed")
				return
			}

			userID, err := auth.ParseSubject(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication failed")
				return
			}

			user, err := accounts.Authenticate(r.Context(), userID, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication failed")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			ctx = context.WithValue(ctx, contextTokenKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
