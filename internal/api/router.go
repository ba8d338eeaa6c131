package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// BackendAPIKey must be sent in X-API-Key or Authorization: Bearer <key>.
	// Empty disables auth.
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// Empty allows all origins.
	CorsAllowedOrigins string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", h.Health)
	r.Get("/health", h.Health)

	// Generated artifacts; job directories are named by unguessable ids.
	outputs := http.StripPrefix("/outputs", http.FileServer(http.Dir(h.workspace.OutputDir())))
	r.Handle("/outputs/*", outputs)

	r.Route("/api", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		r.Get("/videos", h.ListVideos)
		r.Post("/videos", h.CreateVideo)
		r.Get("/videos/{id}", h.GetVideo)
		r.Get("/videos/{id}/status", h.GetVideoStatus)
		r.Get("/videos/{id}/download", h.DownloadVideo)
		r.Get("/videos/{id}/events", h.StreamVideoEvents)
	})

	return r
}

func allowedOrigins(raw string) []string {
	origins := []string{"*"}
	if raw == "" {
		return origins
	}
	trimmed := make([]string, 0)
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > 0 {
		return trimmed
	}
	return origins
}
