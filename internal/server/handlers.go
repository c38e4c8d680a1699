package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lareview/lareview/internal/generate"
	"github.com/lareview/lareview/internal/repolink"
)

// startGeneration kicks off a generation run. The run itself outlives the
// request; progress streams over /event.
func (s *Server) startGeneration(w http.ResponseWriter, r *http.Request) {
	var req generate.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.DiffText == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "diffText is required")
		return
	}

	if s.orch.IsGenerating() {
		writeError(w, http.StatusConflict, ErrCodeConflict, "a generation is already running")
		return
	}

	// The run continues after this request returns; the orchestrator's own
	// guard settles any race between concurrent starts.
	go s.orch.Start(context.Background(), req)

	writeJSON(w, http.StatusAccepted, map[string]bool{"started": true})
}

// stopGeneration requests cancellation of the active run.
func (s *Server) stopGeneration(w http.ResponseWriter, r *http.Request) {
	s.orch.Stop(r.Context())
	writeSuccess(w)
}

// getGenerationState returns the single-flight state of the orchestrator.
func (s *Server) getGenerationState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.State())
}

// getLog returns the full timeline of the current or last run.
func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": s.orch.Store().Messages(),
	})
}

// getPlan returns the agent's current plan, null when none was published.
func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"plan": s.orch.Store().Plan(),
	})
}

// getPendingSnapshot returns the open confirmation request, null when idle.
func (s *Server) getPendingSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": s.orch.Gate().Pending(),
	})
}

// confirmSnapshot grants the pending snapshot-access request.
func (s *Server) confirmSnapshot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Remember bool `json:"remember"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	s.orch.Gate().Confirm(body.Remember)
	writeSuccess(w)
}

// denySnapshot denies the pending snapshot-access request.
func (s *Server) denySnapshot(w http.ResponseWriter, r *http.Request) {
	s.orch.Gate().Deny()
	writeSuccess(w)
}

// listRepos returns all linked repositories.
func (s *Server) listRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.repos.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

// linkRepo registers a local repository.
func (s *Server) linkRepo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string   `json:"name"`
		Path    string   `json:"path"`
		Remotes []string `json:"remotes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if body.Name == "" || body.Path == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name and path are required")
		return
	}

	repo, err := s.repos.Link(r.Context(), body.Name, body.Path, body.Remotes)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

// getRepo returns one linked repository.
func (s *Server) getRepo(w http.ResponseWriter, r *http.Request) {
	repo, err := s.repos.Get(r.Context(), chi.URLParam(r, "repoID"))
	if err != nil {
		if errors.Is(err, repolink.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "repository not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// unlinkRepo removes a linked repository.
func (s *Server) unlinkRepo(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Unlink(r.Context(), chi.URLParam(r, "repoID")); err != nil {
		if errors.Is(err, repolink.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "repository not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

// setSnapshotAccess persists the remembered snapshot-access preference.
func (s *Server) setSnapshotAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Allow bool `json:"allow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := s.repos.SetSnapshotAccess(r.Context(), chi.URLParam(r, "repoID"), body.Allow); err != nil {
		if errors.Is(err, repolink.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "repository not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

// agentInfo is the candidate plus its resolved availability.
type agentInfo struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
}

// listAgents returns the registered agent candidates and whether each one's
// command resolves on PATH.
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	candidates := s.agents.List()
	out := make([]agentInfo, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, agentInfo{
			ID:        c.ID,
			Label:     c.Label,
			Command:   c.Command,
			Available: c.Available(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}
