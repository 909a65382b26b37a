package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, metricsHandler http.Handler, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(m.Timeout(15 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// Uploaded images
	if h.uploads != nil {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploads.Dir())))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	// v1 API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(m.Authenticate)
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Get("/{identifier}", h.GetPost)

			r.Group(func(r chi.Router) {
				r.Use(m.Authenticate)
				r.Post("/", h.CreatePost)
				r.Patch("/{identifier}", h.UpdatePost)
				r.Put("/{identifier}", h.UpdatePost)
				r.Delete("/{identifier}", h.DeletePost)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(m.Authenticate)
			r.Post("/uploads", h.UploadImage)
		})
	})

	return r
}
