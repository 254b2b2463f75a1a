package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parley-labs/parley/internal/api"
	"github.com/parley-labs/parley/internal/api/handlers"
	"github.com/parley-labs/parley/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	ChatHandler      *handlers.ChatHandler
	DocumentsHandler *handlers.DocumentsHandler
	ContextHandler   *handlers.ContextHandler

	// VectorBackend is reported by the health endpoint.
	VectorBackend string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// documents are read fully into memory before chunking
	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"backend": cfg.VectorBackend,
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/chat", cfg.ChatHandler.Ask)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", cfg.DocumentsHandler.Upload)
				r.Get("/", cfg.DocumentsHandler.List)
				r.Get("/{id}/download", cfg.DocumentsHandler.Download)
			})

			r.Get("/context", cfg.ContextHandler.Size)
			r.Delete("/context", cfg.ContextHandler.Clear)
			r.Get("/transcript", cfg.ContextHandler.Transcript)
		})
	})

	return r
}
