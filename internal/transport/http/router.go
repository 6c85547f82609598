// Package httptransport assembles the HTTP surface: shared middleware,
// operational endpoints, and the public and authenticated route groups.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"credreg/internal/platform/metrics"
	"credreg/internal/platform/middleware"
	"credreg/pkg/platform/middleware/auth"
	"credreg/pkg/platform/middleware/metadata"
	"credreg/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Health         http.Handler
	MetricsHandler http.Handler

	Validator   auth.JWTValidator
	AuthOptions auth.Options
	CORSOrigins []string

	// Public routes are reachable without an actor. PublicMiddleware wraps
	// only that group.
	Public           []Registrar
	PublicMiddleware []func(http.Handler) http.Handler
	// Protected routes run behind RequireActor.
	Protected []Registrar
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Latency(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.PrincipalHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(d.PublicMiddleware...)
		for _, h := range d.Public {
			h.Register(r)
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(d.Validator, d.AuthOptions, d.Logger))
		r.Use(middleware.ContentTypeJSON)
		for _, h := range d.Protected {
			h.Register(r)
		}
	})
	return r
}
