// Package metrics exposes the Prometheus counters and gauges the pipeline
// updates directly, in the style of the donor's internal/metrics package
// but without its scrape-a-remote-process model: here every stage owns its
// own metric updates inline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_frames_received_total",
		Help: "Frames accepted by the ingest surface, per camera.",
	}, []string{"camera_id"})

	FramesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_frames_rejected_total",
		Help: "Frames rejected at admission (out-of-order or replay), per camera.",
	}, []string{"camera_id"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_frames_dropped_total",
		Help: "Frames evicted by the drop-oldest admission policy, per camera.",
	}, []string{"camera_id"})

	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_frames_processed_total",
		Help: "Frames that ran through the full stage graph, per camera.",
	}, []string{"camera_id"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crowdwatch_camera_queue_depth",
		Help: "Current depth of the per-camera ingest queue.",
	}, []string{"camera_id"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crowdwatch_stage_duration_seconds",
		Help:    "Wall-clock duration of one pipeline stage invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_stage_errors_total",
		Help: "Stage failures, by stage and error kind.",
	}, []string{"stage", "kind"})

	TracksConfirmed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crowdwatch_tracks_confirmed",
		Help: "Currently confirmed tracks, per camera.",
	}, []string{"camera_id"})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_alerts_emitted_total",
		Help: "Alerts emitted, by camera and severity.",
	}, []string{"camera_id", "severity"})

	CrossCameraMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_cross_camera_matches_total",
		Help: "Cross-camera movement records created, by confidence.",
	}, []string{"confidence"})

	PushDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_push_delivered_total",
		Help: "Events delivered to push subscribers, by topic.",
	}, []string{"topic"})

	PushDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_push_dropped_total",
		Help: "Events dropped because a subscriber's buffer was full, by topic.",
	}, []string{"topic"})

	PushDisconnected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_push_subscriber_disconnected_total",
		Help: "Subscribers disconnected after consecutive buffer-full drops.",
	}, []string{"topic"})

	WriteBufferDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crowdwatch_write_buffer_depth",
		Help: "Rows buffered awaiting a persistence write, per camera.",
	}, []string{"camera_id"})

	WriteBufferDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdwatch_write_buffer_dropped_total",
		Help: "Rows dropped because the per-camera write buffer was full.",
	}, []string{"camera_id"})
)

// Handler exposes the default registry for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
