// Package api implements the HTTP/JSON and WebSocket surface: camera
// registration, frame ingestion, analytics/zone/alert/movement queries, the
// live annotated stream, and the push-fabric WebSocket endpoints, wired
// together with the chi router the way the donor's hlsd and camera_handlers
// services are.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technosupport/crowdwatch/internal/crosscam"
	"github.com/technosupport/crowdwatch/internal/framecache"
	"github.com/technosupport/crowdwatch/internal/ingest"
	"github.com/technosupport/crowdwatch/internal/pipeline"
	"github.com/technosupport/crowdwatch/internal/push"
	"github.com/technosupport/crowdwatch/internal/registry"
	"github.com/technosupport/crowdwatch/internal/store"
	"github.com/technosupport/crowdwatch/internal/vision/detector"
	"github.com/technosupport/crowdwatch/internal/vision/reid"
)

const version = "1.0.0"

// Deps bundles every collaborator the handlers need. The Processor each
// camera runs is built lazily by handleRegisterCamera (via ensurePipeline),
// since a Processor is
// camera-private state (§4.3/§4.5/§4.6) and cannot be constructed once for
// the whole server.
type Deps struct {
	Store       *store.Store
	Zones       *registry.ZoneCache
	Cameras     *registry.Cameras
	Coordinator *ingest.Coordinator
	FrameCache  *framecache.Cache
	PushHub     *push.Hub
	WriteBuf    *store.WriteBuffer
	CrossCamBus *crosscam.Bus

	PipelineConfig pipeline.Config
	Detector       detector.Detector
	Extractor      reid.Extractor

	StartedAt time.Time
}

// Server owns the router and Deps.
type Server struct {
	deps   Deps
	router chi.Router
}

func NewServer(deps Deps) *Server {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}
	s := &Server{deps: deps}
	s.router = s.newRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/cameras/register", s.handleRegisterCamera)
	r.Get("/cameras", s.handleListCameras)
	r.Get("/cameras/{camera_id}", s.handleGetCamera)
	r.Get("/cameras/{camera_id}/snapshot", s.handleSnapshot)

	r.Post("/frames/upload", s.handleFrameUpload)

	r.Get("/analytics/{camera_id}/realtime", s.handleAnalyticsRealtime)
	r.Get("/analytics/{camera_id}/history", s.handleAnalyticsHistory)
	r.Get("/analytics/{camera_id}/heatmap", s.handleAnalyticsHeatmap)
	r.Get("/analytics/{camera_id}/entry-exit", s.handleEntryExit)

	r.Post("/zones", s.handleCreateZone)
	r.Get("/zones/{camera_id}", s.handleListZones)
	r.Put("/zones/{id}", s.handleUpdateZone)
	r.Delete("/zones/{id}", s.handleDeleteZone)

	r.Get("/alerts/active", s.handleActiveAlerts)
	r.Post("/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)

	r.Get("/movements", s.handleListMovements)
	r.Get("/movements/camera/{camera_id}", s.handleMovementsByCamera)
	r.Get("/movements/pair/{a}/{b}", s.handleMovementsByPair)
	r.Get("/movements/statistics", s.handleMovementStatistics)

	r.Get("/stream/{camera_id}", s.handleStream)

	r.Get("/ws/frames", s.handleWSFrames)
	r.Get("/ws/dashboard/{camera_id}", s.handleWSDashboard)
	r.Get("/ws/alerts", s.handleWSAlerts)

	return r
}

// corsMiddleware mirrors the donor's dev-permissive CORS handling, short
// circuiting preflight OPTIONS before any auth or routing runs.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.deps.Store == nil || s.deps.Store.DB.PingContext(ctx) != nil {
		dbStatus = "down"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version,
		"db":        dbStatus,
		"uptime_s":  time.Since(s.deps.StartedAt).Seconds(),
		"timestamp": time.Now().UTC(),
	})
}
