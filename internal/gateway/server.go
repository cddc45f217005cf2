package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.countRequests)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.prom != nil {
		r.Handle("/metrics", g.prom.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
		}
		r.Use(middleware.RequestSize(g.config.MaxBodyBytes))

		r.Get("/status", g.handleStatus())
		r.Get("/config", g.handleGetConfig())

		writes := mutationLimit(g.audit, g.limiter)

		r.Post("/chat/recent", g.handleRecentTurns())
		r.With(writes).Post("/chat/turns", g.handleSaveTurn())
		if g.ingester != nil {
			r.With(writes).Post("/ingest", g.handleIngest())
		}

		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Post("/search", g.handleSearch())
			r.Post("/items", g.handleListItems())
			r.Get("/count", g.handleCount())
			r.With(writes).Post("/delete", g.handleDeleteItems())
			r.With(writes).Delete("/sources/{source}", g.handleDeleteSource())
			r.With(writes).Delete("/", g.handleClearCollection())
		})
	})

	return r
}
