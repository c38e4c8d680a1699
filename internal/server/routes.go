package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Generation lifecycle
	r.Route("/generate", func(r chi.Router) {
		r.Post("/", s.startGeneration)
		r.Post("/stop", s.stopGeneration)
		r.Get("/state", s.getGenerationState)
		r.Get("/log", s.getLog)
		r.Get("/plan", s.getPlan)
	})

	// Snapshot confirmation gate
	r.Route("/snapshot", func(r chi.Router) {
		r.Get("/pending", s.getPendingSnapshot)
		r.Post("/confirm", s.confirmSnapshot)
		r.Post("/deny", s.denySnapshot)
	})

	// Linked repositories
	r.Route("/repo", func(r chi.Router) {
		r.Get("/", s.listRepos)
		r.Post("/", s.linkRepo)

		r.Route("/{repoID}", func(r chi.Router) {
			r.Get("/", s.getRepo)
			r.Delete("/", s.unlinkRepo)
			r.Put("/snapshot-access", s.setSnapshotAccess)
		})
	})

	// Agent candidates
	r.Get("/agent", s.listAgents)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
