// Package config loads and hot-reloads the server's tunables from a YAML
// file, watching it with fsnotify the same way the donor codebase watches
// its license file for changes.
package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Ingest holds per-camera admission and queueing tunables.
type Ingest struct {
	QueueDepth int `yaml:"queue_depth"`
	TargetFPS  int `yaml:"target_fps"`
}

// Detector holds the detector stage's thresholds.
type Detector struct {
	ConfThreshold float64 `yaml:"conf_threshold"`
	NMSThreshold  float64 `yaml:"nms_threshold"`
}

// Tracker holds the SORT-style tracker's thresholds.
type Tracker struct {
	IoUThreshold float64 `yaml:"iou_threshold"`
	MinHits      int     `yaml:"min_hits"`
	MaxAge       int     `yaml:"max_age"`
}

// ReID holds the appearance embedding stage's tunables.
type ReID struct {
	EmbeddingDim int     `yaml:"embedding_dim"`
	Alpha        float64 `yaml:"alpha"`
}

// Analytics holds the crowd-analytics derivation tunables.
type Analytics struct {
	DensityNorm        float64 `yaml:"density_norm"`
	ReferenceSpeed      float64 `yaml:"reference_speed"`
	SpeedJumpThreshold float64 `yaml:"speed_jump_threshold"`
	KDEBandwidthPx     float64 `yaml:"kde_bandwidth_px"`
}

// Risk holds alert-generation tunables.
type Risk struct {
	AlertResampleIntervalS int `yaml:"alert_resample_interval_s"`
}

// FrameCache holds the buffered-stream cache tunables.
type FrameCache struct {
	FramesPerCamera int `yaml:"frames_per_camera"`
	TTLSeconds      int `yaml:"ttl_seconds"`
}

// CrossCamera holds the cross-camera matcher's tunables.
type CrossCamera struct {
	SimThreshold   float64 `yaml:"sim_threshold"`
	WindowMinutes  int     `yaml:"window_minutes"`
}

// Push holds the outbound push-fabric tunables.
type Push struct {
	SubscriberBuffer  int `yaml:"subscriber_buffer"`
	SendDeadlineMS    int `yaml:"send_deadline_ms"`
	MaxConsecutiveDrops int `yaml:"max_consecutive_drops"`
}

// Store holds connection strings for the persistence tier.
type Store struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	NatsURL     string `yaml:"nats_url"`
	WriteBufMax int    `yaml:"write_buf_max"`
}

// Config is the full, hot-reloadable tunable set. Connection fields in
// Store are read once at startup; everything else may be replaced by a new
// snapshot via Watcher.
type Config struct {
	ListenAddr  string      `yaml:"listen_addr"`
	Ingest      Ingest      `yaml:"ingest"`
	Detector    Detector    `yaml:"detector"`
	Tracker     Tracker     `yaml:"tracker"`
	ReID        ReID        `yaml:"reid"`
	Analytics   Analytics   `yaml:"analytics"`
	Risk        Risk        `yaml:"risk"`
	FrameCache  FrameCache  `yaml:"frame_cache"`
	CrossCamera CrossCamera `yaml:"cross_camera"`
	Push        Push        `yaml:"push"`
	Store       Store       `yaml:"store"`
}

// Default returns the spec's default tunables.
func Default() *Config {
	return &Config{
		ListenAddr: ":8090",
		Ingest:     Ingest{QueueDepth: 10, TargetFPS: 30},
		Detector:   Detector{ConfThreshold: 0.5, NMSThreshold: 0.4},
		Tracker:    Tracker{IoUThreshold: 0.5, MinHits: 3, MaxAge: 30},
		ReID:       ReID{EmbeddingDim: 512, Alpha: 0.3},
		Analytics:  Analytics{DensityNorm: 1.0, ReferenceSpeed: 2.0, SpeedJumpThreshold: 1.5, KDEBandwidthPx: 80},
		Risk:       Risk{AlertResampleIntervalS: 30},
		FrameCache: FrameCache{FramesPerCamera: 10, TTLSeconds: 5},
		CrossCamera: CrossCamera{SimThreshold: 0.70, WindowMinutes: 10},
		Push: Push{SubscriberBuffer: 64, SendDeadlineMS: 1000, MaxConsecutiveDrops: 3},
		Store: Store{PostgresDSN: "", RedisAddr: "localhost:6379", NatsURL: "nats://localhost:4222", WriteBufMax: 1000},
	}
}

// Load reads path and unmarshals it onto Default, so any field the YAML
// leaves unset keeps its default value. A missing file yields Default
// unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Watcher hot-reloads the tunable fields of Config from path on write,
// publishing each new snapshot through an atomic.Pointer so camera
// workers reading Current() never observe a half-written struct.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads path once and starts watching it for further writes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, done: make(chan struct{})}
	w.current.Store(cfg)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		// No fsnotify available (e.g. inotify limits exhausted): run with
		// the snapshot we already loaded rather than refusing to start.
		return w, nil
	}
	w.watcher = fw
	if err := fw.Add(path); err != nil {
		fw.Close()
		w.watcher = nil
		return w, nil
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(100 * time.Millisecond)
		case <-debounce.C:
			if cfg, err := Load(w.path); err == nil {
				w.current.Store(cfg)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Current returns the latest loaded snapshot.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Close stops the background watch goroutine.
func (w *Watcher) Close() error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
