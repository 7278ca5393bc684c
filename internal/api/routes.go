package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Analytics-Distinct-Id", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Rate limiter for reload: burst of 5, then sustained 1 per 10s.
	// Snapshot rebuilds are expensive relative to every other endpoint.
	reloadLimiter := NewRateLimiter(5, 10*time.Second)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/ping", h.Ping)
		r.Get("/health", h.Health)
		r.Get("/search", h.Search)
		r.Post("/recommend", h.Recommend)
		r.Post("/feedback", h.Feedback)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.With(reloadLimiter.Middleware).Post("/reload", h.Reload)
		})
	})

	return r
}
