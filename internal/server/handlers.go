package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/orium/internal/runs"
	"github.com/go-chi/chi/v5"
)

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// handleRoot answers GET / with a liveness message
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"project": "Orium Backend v1.0",
	})
}

// handleHealth checks the runs database
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.runsDB != nil {
		if err := s.runsDB.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check failed")
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleTrainingStatus returns the live run state
// GET /api/training/status
func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.Status())
}

// handleListRuns returns recent runs
// GET /api/runs?limit=N
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	list, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}

// runDetail is the body of GET /api/runs/{id}
type runDetail struct {
	Run     *runs.Run     `json:"run"`
	Summary *runs.Summary `json:"summary"`
}

// handleGetRun returns a run with its summary
// GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.writeRunError(w, id, err)
		return
	}

	summary, err := s.runs.Summary(r.Context(), id)
	if err != nil {
		s.writeRunError(w, id, err)
		return
	}

	s.writeJSON(w, http.StatusOK, runDetail{Run: run, Summary: summary})
}

// handleListEpisodes returns every episode of a run
// GET /api/runs/{id}/episodes
func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.runs.GetRun(r.Context(), id); err != nil {
		s.writeRunError(w, id, err)
		return
	}

	episodes, err := s.runs.ListEpisodes(r.Context(), id)
	if err != nil {
		s.writeRunError(w, id, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   id,
		"episodes": episodes,
		"count":    len(episodes),
	})
}

func (s *Server) writeRunError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, runs.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
	s.writeError(w, http.StatusInternalServerError, "failed to load run")
}
