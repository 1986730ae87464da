package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rfp-studio/engine/internal/api/handlers"
	mw "github.com/rfp-studio/engine/internal/api/middleware"
)

type Dependencies struct {
	Tokens mw.TokenParser
	Users  mw.UserResolver

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	HealthHandler        *handlers.HealthHandler
	AuthHandler          *handlers.AuthHandler
	RFPsHandler          *handlers.RFPsHandler
	DocumentsHandler     *handlers.DocumentsHandler
	NotificationsHandler *handlers.NotificationsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.Metrics)
	r.Use(mw.CORS(dep.CORSOrigins))
	r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	r.Use(chimid.Compress(5))

	// Health endpoints
	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", dep.HealthHandler.Health)

		// Public user routes
		api.Post("/users/register", dep.AuthHandler.Register)
		api.Post("/users/login", dep.AuthHandler.Login)

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.Tokens, dep.Users))

			protected.Get("/users/me", dep.AuthHandler.Me)
			protected.Put("/users/me", dep.AuthHandler.UpdateMe)

			protected.Route("/rfps", dep.RFPsHandler.Routes)
			protected.Route("/documents", dep.DocumentsHandler.Routes)
			protected.Route("/notifications", dep.NotificationsHandler.Routes)
		})
	})

	return r
}
