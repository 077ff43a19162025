package api

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/crowdwatch/internal/framecache"
	"github.com/technosupport/crowdwatch/internal/model"
)

const streamInterval = 33 * time.Millisecond // ~30Hz per §6

// renderOptionsFromQuery maps the §6 show_* query params onto framecache's
// RenderOptions. ShowBoxes and ShowFlow are left off, and ShowTrackIDs is
// wired through but has no visible effect from this endpoint specifically:
// confirmed-track state
// is private to each camera's Processor (§4.3) and isn't exposed outside the
// pipeline, so annotatedJPEG always calls Annotate with a nil track list.
// Zones, the density wash, the risk bar, and the metrics HUD all come from
// data the API does have direct access to (the zone cache and the store's
// latest analytics sample).
func renderOptionsFromQuery(r *http.Request) framecache.RenderOptions {
	q := r.URL.Query()
	return framecache.RenderOptions{
		ShowZones:    q.Get("show_zones") != "false",
		ShowTrackIDs: q.Get("show_track_ids") == "true",
		ShowHeatmap:  q.Get("show_heatmap") == "true",
		ShowMetrics:  q.Get("show_metrics") != "false",
		ShowRiskBar:  q.Get("show_metrics") != "false",
	}
}

// annotatedJPEG decodes cameraID's latest cached frame and re-encodes it
// with the requested overlays, falling back to the raw JPEG bytes if
// annotation fails for any reason (a corrupt cached frame should degrade
// the stream, not break it).
func (s *Server) annotatedJPEG(r *http.Request, cameraID string, opts framecache.RenderOptions) ([]byte, bool) {
	frame, ok := s.deps.FrameCache.GetLatest(cameraID)
	if !ok {
		return nil, false
	}
	img, err := jpeg.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		return frame.JPEG, true
	}

	zones := s.deps.Zones.ZonesFor(cameraID)
	var sample model.AnalyticsSample
	if latest, err := s.deps.Store.Analytics.Latest(r.Context(), cameraID); err == nil {
		sample = *latest
	}

	out, err := framecache.Annotate(img, nil, zones, sample, opts)
	if err != nil {
		return frame.JPEG, true
	}
	return out, true
}

// handleSnapshot returns a single annotated JPEG of cameraID's most
// recently cached frame.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	opts := framecache.DefaultRenderOptions()
	if r.URL.Query().Get("annotated") == "false" {
		opts = framecache.RenderOptions{}
	}
	jpegBytes, ok := s.annotatedJPEG(r, cameraID, opts)
	if !ok {
		respondError(w, http.StatusNotFound, "no cached frame for camera")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpegBytes)
}

// handleStream serves a multipart/x-mixed-replace MJPEG stream, polling the
// frame cache at ~30Hz and pushing whatever frame is currently latest
// (duplicating the previous frame if the camera hasn't produced a new one
// yet, matching how a live preview tile behaves when a feed stalls).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	opts := renderOptionsFromQuery(r)

	const boundary = "frame"
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", boundary))
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			jpegBytes, ok := s.annotatedJPEG(r, cameraID, opts)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpegBytes))
			if _, err := w.Write(jpegBytes); err != nil {
				return
			}
			fmt.Fprint(w, "\r\n")
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
