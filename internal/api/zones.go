package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/technosupport/crowdwatch/internal/model"
)

type zoneRequest struct {
	CameraID    string        `json:"camera_id"`
	Name        string        `json:"name"`
	Type        model.ZoneType `json:"type"`
	Polygon     []model.Point `json:"polygon"`
	MaxCapacity *int          `json:"max_capacity,omitempty"`
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CameraID == "" || len(req.Polygon) < 3 {
		respondError(w, http.StatusBadRequest, "camera_id and a polygon of at least 3 points are required")
		return
	}

	zone := &model.Zone{
		ID:          uuid.NewString(),
		CameraID:    req.CameraID,
		Name:        req.Name,
		Type:        req.Type,
		Polygon:     req.Polygon,
		MaxCapacity: req.MaxCapacity,
		Status:      "active",
	}
	if err := s.deps.Store.Zones.Create(r.Context(), zone); err != nil {
		respondStoreErr(w, err)
		return
	}
	s.refreshZoneCache(r.Context(), req.CameraID)
	respondJSON(w, http.StatusCreated, zone)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	zones, err := s.deps.Store.Zones.ListByCamera(r.Context(), cameraID)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	zone, err := s.deps.Store.Zones.GetByID(r.Context(), id)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	zone.Name = req.Name
	zone.Type = req.Type
	if req.Polygon != nil {
		zone.Polygon = req.Polygon
	}
	zone.MaxCapacity = req.MaxCapacity

	if err := s.deps.Store.Zones.Update(r.Context(), zone); err != nil {
		respondStoreErr(w, err)
		return
	}
	s.refreshZoneCache(r.Context(), zone.CameraID)
	respondJSON(w, http.StatusOK, zone)
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	zone, err := s.deps.Store.Zones.GetByID(r.Context(), id)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	if err := s.deps.Store.Zones.Delete(r.Context(), id); err != nil {
		respondStoreErr(w, err)
		return
	}
	s.deps.Zones.Remove(zone.CameraID, id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// refreshZoneCache reloads cameraID's zone list from Postgres into the
// in-memory ZoneCache the pipeline reads on every frame, so a CRUD call
// takes effect on the very next frame rather than waiting for a restart.
func (s *Server) refreshZoneCache(ctx context.Context, cameraID string) {
	zones, err := s.deps.Store.Zones.ListByCamera(ctx, cameraID)
	if err != nil {
		return
	}
	s.deps.Zones.Set(cameraID, zones)
}
