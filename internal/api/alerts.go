package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/crowdwatch/internal/model"
)

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cameraID := q.Get("camera_id")
	severity := model.RiskLevel(q.Get("severity"))
	limit := atoiDefault(q.Get("limit"), 50)

	alerts, err := s.deps.Store.Alerts.ListActive(r.Context(), cameraID, severity, limit)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// handleAcknowledgeAlert is idempotent: acknowledging an already-acked
// alert still returns 200, since AlertModel.Acknowledge only reports
// ErrNotFound when the id itself doesn't exist.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Store.Alerts.Acknowledge(r.Context(), id); err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}
