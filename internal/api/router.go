package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/api/middleware"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/blob"
	"github.com/blasperez/Private-Chat/internal/config"
	"github.com/blasperez/Private-Chat/internal/handlers"
	"github.com/blasperez/Private-Chat/internal/registry"
	"github.com/blasperez/Private-Chat/internal/store"
	"github.com/blasperez/Private-Chat/internal/ws"
)

// Deps bundles everything the router wires together. Redis is optional;
// without it rate limiting is disabled.
type Deps struct {
	Config   *config.Config
	Store    store.DataStore
	Blobs    blob.Store
	Redis    *store.RedisStore
	Registry *registry.Registry
	Access   *auth.Service
	Tokens   *auth.TokenManager
	Logger   zerolog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware first to capture all requests
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(d.Config.MaxUploadBytes))
	r.Use(middleware.ValidateRequest)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	if d.Redis != nil {
		limiter := middleware.NewRateLimiter(d.Redis.Client(), d.Logger, middleware.RateLimiterConfig{
			AutoBlockEnabled: d.Config.Env == "production",
		})
		r.Use(limiter.Middleware)
	}

	// Participants open rooms from links pasted anywhere, so CORS is open.
	// The password and session token are the access control.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(d.Store, d.Blobs, d.Redis, d.Registry, d.Access, d.Config, d.Logger)
	session := middleware.NewSessionAuth(d.Tokens)
	wsHandler := ws.NewHandler(d.Registry, d.Store, d.Tokens, d.Logger)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Post("/api/rooms", h.CreateRoom)
	r.Get("/api/resolve/{token}", h.Resolve)
	r.Post("/api/rooms/{id}/join", h.Join)

	// Room-scoped routes require the session token issued at join
	r.Group(func(r chi.Router) {
		r.Use(session.RequireSession)

		r.Post("/api/rooms/{id}/upload", h.Upload)
		r.Get("/api/rooms/{id}/media/{name}", h.Media)
	})

	// The websocket carries its token in the query string
	r.Get("/ws", wsHandler.ServeHTTP)

	return r
}
