package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/push"
)

var inboundUpgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsFrameMessage is the wire shape an edge device streams over /ws/frames:
// one JSON envelope per binary JPEG frame.
type wsFrameMessage struct {
	CameraID  string    `json:"camera_id"`
	FrameID   uint64    `json:"frame_id"`
	Timestamp time.Time `json:"timestamp"`
}

// handleWSFrames is the inbound counterpart to push.ServeWS: it reads a
// JSON header frame followed by a binary JPEG frame from the same
// connection, repeatedly, admitting each into the coordinator. This is a
// distinct upgrader from the push fabric's outbound-only one.
func (s *Server) handleWSFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := inboundUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws/frames upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, header, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var meta wsFrameMessage
		if err := json.Unmarshal(header, &meta); err != nil {
			continue
		}
		if meta.Timestamp.IsZero() {
			meta.Timestamp = time.Now()
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frame := &model.Frame{
			CameraID:  meta.CameraID,
			FrameID:   meta.FrameID,
			Timestamp: meta.Timestamp,
			JPEG:      payload,
		}
		if err := s.deps.Coordinator.Submit(meta.CameraID, frame); err != nil {
			log.Printf("[api] ws/frames rejected camera=%s frame_id=%d: %v", meta.CameraID, meta.FrameID, err)
		}
	}
}

func (s *Server) handleWSDashboard(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	push.ServeWS(s.deps.PushHub, push.MetricsTopic(cameraID), w, r)
}

func (s *Server) handleWSAlerts(w http.ResponseWriter, r *http.Request) {
	push.ServeWS(s.deps.PushHub, push.TopicAlerts, w, r)
}
