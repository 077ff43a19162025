// Package pipeline wires the per-camera vision and analytics stage graph
// together — detector, tracker, re-id, zone evaluator, analytics, risk
// scoring, frame cache, cross-camera publish, and persistence — behind the
// ingest.CameraPipeline interface one Coordinator worker goroutine drives.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync/atomic"
	"time"

	"github.com/technosupport/crowdwatch/internal/analytics"
	"github.com/technosupport/crowdwatch/internal/apperr"
	"github.com/technosupport/crowdwatch/internal/crosscam"
	"github.com/technosupport/crowdwatch/internal/framecache"
	"github.com/technosupport/crowdwatch/internal/metrics"
	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/push"
	"github.com/technosupport/crowdwatch/internal/risk"
	"github.com/technosupport/crowdwatch/internal/store"
	"github.com/technosupport/crowdwatch/internal/vision/detector"
	"github.com/technosupport/crowdwatch/internal/vision/reid"
	"github.com/technosupport/crowdwatch/internal/vision/tracker"
)

// ZoneProvider returns the current zones configured for a camera; the
// pipeline mutates the returned slice's CurrentOccupancy in place and
// writes each zone's occupancy to the store itself (see Processor.persist).
type ZoneProvider interface {
	ZonesFor(cameraID string) []model.Zone
}

// Config bundles every stage's tunables the Processor needs at construction.
type Config struct {
	Detector    detector.Config
	Tracker     tracker.Config
	ReID        reid.Config
	Analytics   analytics.Config
	Risk        risk.Config
	CrossCamera crosscam.Config
}

// Processor is the single-camera worker that runs one admitted frame
// through the full stage graph. It implements ingest.CameraPipeline.
type Processor struct {
	cameraID string
	cfg      Config

	detector  detector.Detector
	tracker   *tracker.Tracker
	extractor reid.Extractor
	zoneEval  *analytics.ZoneEvaluator
	riskGen   *risk.Generator

	zones      ZoneProvider
	frameCache *framecache.Cache
	writeBuf   *store.WriteBuffer
	st         *store.Store
	pushHub    *push.Hub
	crosscam   *crosscam.Bus // nil disables cross-camera publish

	seq atomic.Uint64
}

// New builds a Processor for cameraID. det and extractor may be shared
// across cameras (they are stateless); tracker/zoneEval/riskGen are always
// camera-private per §4.3/§4.5/§4.6 and must not be reused across cameras.
func New(
	cameraID string,
	cfg Config,
	det detector.Detector,
	extractor reid.Extractor,
	zones ZoneProvider,
	frameCache *framecache.Cache,
	writeBuf *store.WriteBuffer,
	st *store.Store,
	pushHub *push.Hub,
	bus *crosscam.Bus,
) *Processor {
	return &Processor{
		cameraID:   cameraID,
		cfg:        cfg,
		detector:   det,
		tracker:    tracker.New(cameraID, cfg.Tracker),
		extractor:  extractor,
		zoneEval:   analytics.NewZoneEvaluator(),
		riskGen:    risk.NewGenerator(cameraID, cfg.Risk),
		zones:      zones,
		frameCache: frameCache,
		writeBuf:   writeBuf,
		st:         st,
		pushHub:    pushHub,
		crosscam:   bus,
	}
}

// Process runs detector -> tracker -> re-id -> zone evaluator -> analytics
// -> risk -> alert generation for one frame, then fans the results out to
// the frame cache, the push fabric, the write buffer, and (if configured)
// the cross-camera bus. It never returns an error: a stage failure is
// logged via metrics and the frame is otherwise dropped, matching the
// admission worker's "one bad frame must not wedge the camera" contract.
func (p *Processor) Process(ctx context.Context, frame *model.Frame) {
	img, err := p.decode(frame)
	if err != nil {
		metrics.StageErrors.WithLabelValues("decode", string(apperr.KindOf(err))).Inc()
		return
	}

	dets := runStage("detector", func() []model.Detection {
		return detector.Run(ctx, p.detector, img, p.cfg.Detector)
	})

	tracks := runStage("tracker", func() []model.Track {
		return p.tracker.Update(dets, frame.Timestamp)
	})
	metrics.TracksConfirmed.WithLabelValues(p.cameraID).Set(float64(len(tracks)))

	p.updateEmbeddings(ctx, img, tracks)

	zones := p.zones.ZonesFor(p.cameraID)
	events := runStage("zones", func() []model.EntryExitEvent {
		return p.zoneEval.Evaluate(tracks, zones, frame.Timestamp)
	})

	analyticsStart := time.Now()
	sample, trackMetrics := analytics.Compute(p.cameraID, tracks, frame.Timestamp, p.cfg.Analytics)
	metrics.StageDuration.WithLabelValues("analytics").Observe(time.Since(analyticsStart).Seconds())

	alerts := runStage("risk", func() []model.Alert {
		return p.riskGen.Evaluate(&sample, trackMetrics, zones, frame.Timestamp)
	})

	p.frameCache.Put(p.cameraID, p.seq.Add(1), *frame)
	p.publish(sample, alerts)
	p.persist(ctx, frame, sample, events, alerts, zones)
	p.publishCrossCamera(events, tracks)
}

func (p *Processor) decode(frame *model.Frame) (image.Image, error) {
	if len(frame.JPEG) == 0 {
		return nil, apperr.Corruptf("frame %d for camera %s carries no image data", frame.FrameID, p.cameraID)
	}
	img, err := jpeg.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		return nil, apperr.Corruptf("decoding frame %d for camera %s: %v", frame.FrameID, p.cameraID, err)
	}
	return img, nil
}

// updateEmbeddings extracts an appearance vector per confirmed track and
// folds it into the tracker's stored embedding by EMA, so cross-camera
// matching always compares a track's accumulated appearance rather than
// one frame's noisy snapshot.
func (p *Processor) updateEmbeddings(ctx context.Context, img image.Image, tracks []model.Track) {
	start := time.Now()
	for _, tr := range tracks {
		vec, err := p.extractor.Extract(ctx, img, tr.BBox)
		if err != nil {
			metrics.StageErrors.WithLabelValues("reid", string(apperr.KindOf(err))).Inc()
			continue
		}
		blended := reid.UpdateEMA(tr.Embedding, vec, p.cfg.ReID.Alpha)
		p.tracker.UpdateEmbedding(tr.TrackID, blended)
	}
	metrics.StageDuration.WithLabelValues("reid").Observe(time.Since(start).Seconds())
}

func runStage[T any](stage string, fn func() T) T {
	start := time.Now()
	out := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out
}

func (p *Processor) publish(sample model.AnalyticsSample, alerts []model.Alert) {
	if data, err := marshalJSON(sample); err == nil {
		p.pushHub.Publish(push.MetricsTopic(p.cameraID), data)
	}
	for _, a := range alerts {
		metrics.AlertsEmitted.WithLabelValues(p.cameraID, string(a.Severity)).Inc()
		if data, err := marshalJSON(a); err == nil {
			p.pushHub.Publish(push.TopicAlerts, data)
		}
	}
}

func (p *Processor) persist(ctx context.Context, frame *model.Frame, sample model.AnalyticsSample, events []model.EntryExitEvent, alerts []model.Alert, zones []model.Zone) {
	if p.st == nil || p.writeBuf == nil {
		return
	}
	p.writeBuf.Submit(p.cameraID, func(ctx context.Context) error {
		return p.st.Analytics.Insert(ctx, sample)
	})
	for _, ev := range events {
		ev := ev
		p.writeBuf.Submit(p.cameraID, func(ctx context.Context) error {
			return p.st.Events.Insert(ctx, ev)
		})
	}
	for _, a := range alerts {
		a := a
		p.writeBuf.Submit(p.cameraID, func(ctx context.Context) error {
			return p.st.Alerts.Insert(ctx, a)
		})
	}
	for _, z := range zones {
		z := z
		p.writeBuf.Submit(p.cameraID, func(ctx context.Context) error {
			return p.st.Zones.UpdateOccupancy(ctx, z.ID, z.CurrentOccupancy)
		})
	}
	p.writeBuf.Submit(p.cameraID, func(ctx context.Context) error {
		return p.st.Cameras.TouchLastFrame(ctx, p.cameraID, sqlNullTime(frame.Timestamp))
	})
}

// publishCrossCamera hands every entry/exit event this frame produced to
// the cross-camera bus, paired with the event's track's current embedding
// so the matcher (running asynchronously, possibly on another camera's
// worker) has appearance evidence to compare.
func (p *Processor) publishCrossCamera(events []model.EntryExitEvent, tracks []model.Track) {
	if p.crosscam == nil || len(events) == 0 {
		return
	}
	byTrack := make(map[uint64]model.Track, len(tracks))
	for _, tr := range tracks {
		byTrack[tr.TrackID] = tr
	}
	for _, ev := range events {
		tr, ok := byTrack[ev.TrackID]
		if !ok || len(tr.Embedding) == 0 {
			continue
		}
		if err := p.crosscam.Publish(ev, tr.Embedding); err != nil {
			metrics.StageErrors.WithLabelValues("crosscam_publish", string(apperr.KindOf(err))).Inc()
		}
	}
}
