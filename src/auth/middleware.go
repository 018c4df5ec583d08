package auth

import (
	"context"
	"net/http"
	"strings"

	"tradedash/src/model"

	logger "github.com/sirupsen/logrus"
)

type userResolver interface {
	FindByAPIToken(ctx context.Context, token string) (*model.User, error)
}

// Middleware resolves the authenticated user from the Authorization bearer
// token and stores it on the request context. Requests without a valid token
// are rejected with 401.
func Middleware(users userResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.FindByAPIToken(r.Context(), token)
			if err != nil {
				logger.WithError(err).Error("failed to resolve user from token")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// Websocket clients cannot set headers from the browser, so the token is
	// also accepted as a query parameter.
	return r.URL.Query().Get("token")
}
