package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-auth-webhook/internal/handler"
	"go-auth-webhook/internal/middleware"
)

type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Health *handler.HealthHandler
}

func New(opts Options, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.Health.Health)

	r.Route("/webhook", func(wh chi.Router) {
		wh.Use(middleware.Timeout(opts.RequestTimeout))
		wh.Use(middleware.Credentials)

		wh.Post("/login", h.Auth.Login)
		wh.Post("/signup", h.Auth.Signup)
		wh.Get("/webhook", h.Auth.Webhook)
		wh.Get("/me", h.User.Me)
		wh.Get("/jwks", h.Auth.JWKS)
	})

	return r
}
