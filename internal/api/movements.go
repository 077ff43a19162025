package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/crowdwatch/internal/store"
)

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MovementFilter{
		EntryCamera: q.Get("entry_camera_id"),
		ExitCamera:  q.Get("exit_camera_id"),
		Limit:       atoiDefault(q.Get("limit"), 100),
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t
		}
	}

	movements, err := s.deps.Store.Movements.List(r.Context(), filter)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (s *Server) handleMovementsByCamera(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	movements, err := s.deps.Store.Movements.ListByCamera(r.Context(), cameraID)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (s *Server) handleMovementsByPair(w http.ResponseWriter, r *http.Request) {
	a, b := chi.URLParam(r, "a"), chi.URLParam(r, "b")
	movements, err := s.deps.Store.Movements.ListByPair(r.Context(), a, b)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (s *Server) handleMovementStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.Movements.Statistics(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
