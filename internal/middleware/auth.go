package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-auth-webhook/internal/model"
)

type contextKey string

const credentialsContextKey contextKey = "credentials"

const (
	authorizationHeader = "Authorization"
	roleHeader          = "X-Hasura-Role"
	bearerPrefix        = "bearer "
)

// Credentials extracts the bearer token and requested role from the request
// and stores them in the context. It never rejects a request: an absent
// Authorization header means anonymous, and any other scheme is passed on
// as-is so verification fails on it.
func Credentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := model.Credentials{
			Token:         bearerToken(r.Header.Get(authorizationHeader)),
			RequestedRole: strings.TrimSpace(r.Header.Get(roleHeader)),
		}

		ctx := context.WithValue(r.Context(), credentialsContextKey, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func CredentialsFromContext(ctx context.Context) model.Credentials {
	creds, _ := ctx.Value(credentialsContextKey).(model.Credentials)
	return creds
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		if token := strings.TrimSpace(header[len(bearerPrefix):]); token != "" {
			return token
		}
	}
	return header
}
