// Command server wires the ingest coordinator, per-camera pipelines, the
// persistence and push-fabric layers, the cross-camera matcher, and the
// HTTP/WebSocket API into one process, the way the donor's cmd/hlsd wires
// its own dependency graph.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/technosupport/crowdwatch/internal/analytics"
	"github.com/technosupport/crowdwatch/internal/api"
	"github.com/technosupport/crowdwatch/internal/config"
	"github.com/technosupport/crowdwatch/internal/crosscam"
	"github.com/technosupport/crowdwatch/internal/framecache"
	"github.com/technosupport/crowdwatch/internal/ingest"
	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/pipeline"
	"github.com/technosupport/crowdwatch/internal/push"
	"github.com/technosupport/crowdwatch/internal/registry"
	"github.com/technosupport/crowdwatch/internal/risk"
	"github.com/technosupport/crowdwatch/internal/store"
	"github.com/technosupport/crowdwatch/internal/vision/detector"
	"github.com/technosupport/crowdwatch/internal/vision/reid"
	"github.com/technosupport/crowdwatch/internal/vision/tracker"
)

func main() {
	configPath := os.Getenv("CROWDWATCH_CONFIG")
	if configPath == "" {
		configPath = "config/default.yaml"
	}
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		log.Fatalf("loading config %s: %v", configPath, err)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	st, err := store.Open(cfg.Store.PostgresDSN, cfg.Store.RedisAddr)
	if err != nil {
		log.Fatalf("connecting to store: %v", err)
	}
	defer st.Close()

	if cfg.Store.PostgresDSN != "" {
		if err := store.RunMigrations(st.DB, "file://migrations"); err != nil {
			log.Fatalf("running migrations: %v", err)
		}
	}

	natsConn, err := nats.Connect(cfg.Store.NatsURL)
	if err != nil {
		log.Fatalf("connecting to NATS at %s: %v", cfg.Store.NatsURL, err)
	}
	defer natsConn.Close()

	zoneCache := registry.NewZoneCache()
	if cams, err := st.Cameras.List(context.Background()); err == nil {
		ids := make([]string, len(cams))
		for i, c := range cams {
			ids[i] = c.ID
		}
		if err := zoneCache.LoadFromStore(context.Background(), st, ids); err != nil {
			log.Printf("seeding zone cache: %v", err)
		}
	}

	frameCache := framecache.New(cfg.FrameCache.FramesPerCamera, time.Duration(cfg.FrameCache.TTLSeconds)*time.Second)
	pushHub := push.NewHub(push.Config{
		SubscriberBuffer:    cfg.Push.SubscriberBuffer,
		SendDeadline:        time.Duration(cfg.Push.SendDeadlineMS) * time.Millisecond,
		MaxConsecutiveDrops: cfg.Push.MaxConsecutiveDrops,
	})
	writeBuf := store.NewWriteBuffer(cfg.Store.WriteBufMax)
	coordinator := ingest.NewCoordinator(cfg.Ingest.QueueDepth)
	cameraRegistry := registry.NewCameras(coordinator)

	crossCamWindow := time.Duration(cfg.CrossCamera.WindowMinutes) * time.Minute
	crossCamBus := crosscam.NewBus(natsConn, crosscam.DefaultSubject, 3)
	matcher := crosscam.NewMatcher(crosscam.Config{SimThreshold: cfg.CrossCamera.SimThreshold, Window: crossCamWindow})

	// persistMovements is the matcher's sink: every movement it produces is
	// both durably stored and pushed to any dashboard subscriber watching
	// either endpoint camera's topic.
	persistMovements := func(movements []model.CrossCameraMovement) {
		for _, mv := range movements {
			mv := mv
			writeBuf.Submit(mv.ExitCamera, func(ctx context.Context) error {
				return st.Movements.Upsert(ctx, mv)
			})
			if data, err := marshalMovement(mv); err == nil {
				pushHub.Publish(push.MetricsTopic(mv.ExitCamera), data)
			}
		}
	}
	if _, err := crosscam.Run(crossCamBus, matcher, persistMovements); err != nil {
		log.Printf("starting cross-camera matcher: %v", err)
	}

	pipelineCfg := pipeline.Config{
		Detector: detector.Config{ConfThreshold: cfg.Detector.ConfThreshold, NMSThreshold: cfg.Detector.NMSThreshold},
		Tracker: tracker.Config{IoUThreshold: cfg.Tracker.IoUThreshold, MinHits: cfg.Tracker.MinHits, MaxAge: cfg.Tracker.MaxAge},
		ReID:    reid.Config{Alpha: cfg.ReID.Alpha},
		Analytics: analytics.Config{
			DensityNorm:        cfg.Analytics.DensityNorm,
			ReferenceSpeed:     cfg.Analytics.ReferenceSpeed,
			SpeedJumpThreshold: cfg.Analytics.SpeedJumpThreshold,
			KDEBandwidth:       cfg.Analytics.KDEBandwidthPx,
		},
		Risk: risk.Config{
			ReferenceSpeed:        cfg.Analytics.ReferenceSpeed,
			SpeedJumpThreshold:    cfg.Analytics.SpeedJumpThreshold,
			AlertResampleInterval: time.Duration(cfg.Risk.AlertResampleIntervalS) * time.Second,
		},
		CrossCamera: crosscam.Config{SimThreshold: cfg.CrossCamera.SimThreshold, Window: crossCamWindow},
	}

	srv := api.NewServer(api.Deps{
		Store:          st,
		Zones:          zoneCache,
		Cameras:        cameraRegistry,
		Coordinator:    coordinator,
		FrameCache:     frameCache,
		PushHub:        pushHub,
		WriteBuf:       writeBuf,
		CrossCamBus:    crossCamBus,
		PipelineConfig: pipelineCfg,
		Detector:       detector.NewStubDetector(),
		Extractor:      reid.NewStubExtractor(),
		StartedAt:      time.Now(),
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("crowdwatch listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

func marshalMovement(mv model.CrossCameraMovement) ([]byte, error) {
	return json.Marshal(mv)
}
