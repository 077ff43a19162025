package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/technosupport/crowdwatch/internal/model"
)

const maxUploadBytes = 16 << 20 // 16MiB, generous over one 1080p JPEG

// handleFrameUpload accepts one multipart frame: camera_id, frame (the
// JPEG bytes), and an optional timestamp override, then hands it to the
// admission coordinator exactly as the inbound WebSocket path does.
func (s *Server) handleFrameUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	cameraID := r.FormValue("camera_id")
	if cameraID == "" {
		respondError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	file, _, err := r.FormFile("frame")
	if err != nil {
		respondError(w, http.StatusBadRequest, "frame file is required")
		return
	}
	defer file.Close()

	jpegBytes, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading frame: "+err.Error())
		return
	}

	ts := time.Now()
	if tsStr := r.FormValue("timestamp"); tsStr != "" {
		if parsed, err := time.Parse(time.RFC3339, tsStr); err == nil {
			ts = parsed
		}
	}

	frame := &model.Frame{
		CameraID:  cameraID,
		FrameID:   nextFrameID(),
		Timestamp: ts,
		JPEG:      jpegBytes,
	}

	if err := s.deps.Coordinator.Submit(cameraID, frame); err != nil {
		respondStoreErr(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"status":             "accepted",
		"frame_id":           frame.FrameID,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// nextFrameID derives a strictly-increasing frame id from wall-clock time
// for HTTP-uploaded frames, which carry no client-assigned sequence number.
// Nanosecond resolution keeps collisions astronomically unlikely across a
// single camera's upload rate.
func nextFrameID() uint64 {
	return uint64(time.Now().UnixNano())
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
