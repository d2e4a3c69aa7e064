package api

import (
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"article-video-gen/internal/logging"
)

type RouterConfig struct {
	// BackendAPIKey guards /v1 via X-API-Key or Authorization: Bearer.
	// Empty disables auth.
	BackendAPIKey string

	// Comma-separated; empty allows any origin.
	CorsAllowedOrigins string
}

func NewRouter(h *Handler, cfg RouterConfig, log *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLog(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(corsOptions(cfg.CorsAllowedOrigins)))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		r.Get("/posts", h.ListPosts)
		r.Get("/posts/{id}", h.GetPost)
		r.Post("/posts/{id}/video", h.GenerateVideo)
		r.Get("/categories", h.ListCategories)

		r.Get("/videos", h.ListVideos)

		r.Get("/scheduler", h.SchedulerStatus)
		r.Post("/scheduler/run", h.RunCatalog)
		r.Post("/scheduler/reset", h.ResetProcessed)
	})

	return r
}

// corsOptions allows credentials only for an explicit origin list; the
// wildcard default never reflects origins with credentials.
func corsOptions(allowed string) cors.Options {
	origins := parseOrigins(allowed)
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}
}

func parseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
