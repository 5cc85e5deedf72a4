package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{authorizationHeader, "Content-Type", roleHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		MaxAge:           3600,
		AllowCredentials: false,
	})

	return handler.Handler
}
