package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/pipeline"
	"github.com/technosupport/crowdwatch/internal/store"
)

type registerCameraRequest struct {
	CameraID   string `json:"camera_id"`
	EdgeID     string `json:"edge_id"`
	Location   string `json:"location"`
	Resolution string `json:"resolution"`
	FPS        int    `json:"fps"`
}

// handleRegisterCamera is idempotent: registering an already-known
// camera_id returns the existing row rather than erroring, so an edge
// device can safely retry its startup registration call.
func (s *Server) handleRegisterCamera(w http.ResponseWriter, r *http.Request) {
	var req registerCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CameraID == "" {
		respondError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	ctx := r.Context()
	existing, err := s.deps.Store.Cameras.GetByID(ctx, req.CameraID)
	if err == nil {
		s.ensurePipeline(ctx, existing.ID)
		respondJSON(w, http.StatusOK, existing)
		return
	}
	if err != store.ErrNotFound {
		respondStoreErr(w, err)
		return
	}

	cam := &model.Camera{
		ID:         req.CameraID,
		EdgeID:     req.EdgeID,
		Location:   req.Location,
		Resolution: req.Resolution,
		FPS:        req.FPS,
		Status:     model.CameraActive,
	}
	if err := s.deps.Store.Cameras.Create(ctx, cam); err != nil {
		respondStoreErr(w, err)
		return
	}
	s.ensurePipeline(ctx, cam.ID)
	respondJSON(w, http.StatusCreated, cam)
}

// ensurePipeline registers a fresh, camera-private Processor with the
// coordinator if cam isn't already active, per §4.3/§4.5/§4.6's "never
// share tracker/zone-evaluator/risk state across cameras" contract.
func (s *Server) ensurePipeline(ctx context.Context, cameraID string) {
	if s.deps.Cameras == nil || s.deps.Coordinator == nil || s.deps.Cameras.IsActive(cameraID) {
		return
	}
	proc := pipeline.New(
		cameraID,
		s.deps.PipelineConfig,
		s.deps.Detector,
		s.deps.Extractor,
		s.deps.Zones,
		s.deps.FrameCache,
		s.deps.WriteBuf,
		s.deps.Store,
		s.deps.PushHub,
		s.deps.CrossCamBus,
	)
	s.deps.Cameras.Register(ctx, cameraID, proc)
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := s.deps.Store.Cameras.List(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cameras": cams})
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	cam, err := s.deps.Store.Cameras.GetByID(r.Context(), id)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cam)
}
