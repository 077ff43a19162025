// Package ingest implements the frame-admission and per-camera queueing
// policy of §4.1: strictly-increasing frame_id admission, drop-oldest
// backpressure, and one single-writer worker goroutine per camera, in the
// style of the donor's bounded-queue NVR monitor workers.
package ingest

import (
	"context"
	"log"
	"sync"

	"github.com/technosupport/crowdwatch/internal/apperr"
	"github.com/technosupport/crowdwatch/internal/metrics"
	"github.com/technosupport/crowdwatch/internal/model"
)

// CameraPipeline processes one admitted frame for a camera. Implementations
// must never block indefinitely and must recover their own stage panics;
// see Processor for the reference per-camera worker.
type CameraPipeline interface {
	Process(ctx context.Context, frame *model.Frame)
}

// cameraQueue is the per-camera admission state: a bounded slice queue plus the
// strictly-increasing frame_id watermark used to reject stale frames.
type cameraQueue struct {
	mu             sync.Mutex
	queue          []*model.Frame
	capacity       int
	lastSeenFrame  uint64
	haveSeenFrame  bool
	notifyCh       chan struct{}
	stopCh         chan struct{}
	stoppedCh      chan struct{}
}

// Coordinator owns the registry of per-camera queues and workers keyed by
// camera_id, per §9's "registry keyed by camera_id with a read-write mutex".
type Coordinator struct {
	mu       sync.RWMutex
	cameras  map[string]*cameraQueue
	capacity int
}

// NewCoordinator builds a coordinator whose per-camera queues hold at most
// capacity frames (§4.1's Qmax, default 10).
func NewCoordinator(capacity int) *Coordinator {
	if capacity <= 0 {
		capacity = 10
	}
	return &Coordinator{cameras: make(map[string]*cameraQueue), capacity: capacity}
}

// Register starts a worker goroutine for cameraID that drains admitted
// frames strictly in arrival order and hands each to pipeline.Process.
// Calling Register twice for the same camera is a no-op on the second call.
func (c *Coordinator) Register(ctx context.Context, cameraID string, pipeline CameraPipeline) {
	c.mu.Lock()
	if _, exists := c.cameras[cameraID]; exists {
		c.mu.Unlock()
		return
	}
	cq := &cameraQueue{
		capacity:  c.capacity,
		notifyCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	c.cameras[cameraID] = cq
	c.mu.Unlock()

	go cq.run(ctx, cameraID, pipeline)
}

// Unregister stops cameraID's worker, draining any in-flight frame before
// returning, and removes it from the registry.
func (c *Coordinator) Unregister(cameraID string) {
	c.mu.Lock()
	cq, ok := c.cameras[cameraID]
	if ok {
		delete(c.cameras, cameraID)
	}
	c.mu.Unlock()
	if ok {
		close(cq.stopCh)
		<-cq.stoppedCh
	}
}

// Submit admits one inbound frame for processing. It returns a Validation
// error if the frame is out-of-order or a replay (frame_id <= last seen),
// and a Validation error if the camera is not registered. Admission never
// blocks: a full queue drops its oldest entry.
func (c *Coordinator) Submit(cameraID string, frame *model.Frame) error {
	c.mu.RLock()
	cq, ok := c.cameras[cameraID]
	c.mu.RUnlock()
	if !ok {
		return apperr.Validationf("camera %s is not registered", cameraID)
	}

	cq.mu.Lock()
	if cq.haveSeenFrame && frame.FrameID <= cq.lastSeenFrame {
		cq.mu.Unlock()
		metrics.FramesRejected.WithLabelValues(cameraID).Inc()
		return apperr.Validationf("frame_id %d is not newer than last admitted %d", frame.FrameID, cq.lastSeenFrame)
	}
	cq.lastSeenFrame = frame.FrameID
	cq.haveSeenFrame = true

	if len(cq.queue) >= cq.capacity {
		cq.queue = cq.queue[1:]
		metrics.FramesDropped.WithLabelValues(cameraID).Inc()
	}
	cq.queue = append(cq.queue, frame)
	depth := len(cq.queue)
	cq.mu.Unlock()

	metrics.FramesReceived.WithLabelValues(cameraID).Inc()
	metrics.QueueDepth.WithLabelValues(cameraID).Set(float64(depth))

	select {
	case cq.notifyCh <- struct{}{}:
	default:
	}
	return nil
}

// run is the single worker draining cq strictly in admission order.
func (cq *cameraQueue) run(ctx context.Context, cameraID string, pipeline CameraPipeline) {
	defer close(cq.stoppedCh)
	for {
		frame, ok := cq.pop()
		if ok {
			cq.process(ctx, cameraID, pipeline, frame)
			metrics.QueueDepth.WithLabelValues(cameraID).Set(float64(cq.len()))
			continue
		}
		select {
		case <-ctx.Done():
			cq.drain(ctx, cameraID, pipeline)
			return
		case <-cq.stopCh:
			cq.drain(ctx, cameraID, pipeline)
			return
		case <-cq.notifyCh:
		}
	}
}

// drain processes whatever remains in the queue before a stop, matching
// §5's "workers drain their queue ... on stop".
func (cq *cameraQueue) drain(ctx context.Context, cameraID string, pipeline CameraPipeline) {
	for {
		frame, ok := cq.pop()
		if !ok {
			return
		}
		cq.process(ctx, cameraID, pipeline, frame)
	}
}

func (cq *cameraQueue) pop() (*model.Frame, bool) {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	if len(cq.queue) == 0 {
		return nil, false
	}
	f := cq.queue[0]
	cq.queue = cq.queue[1:]
	return f, true
}

func (cq *cameraQueue) len() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return len(cq.queue)
}

// process runs one frame through the pipeline, recovering a stage panic so
// a single bad frame never tears the camera worker down (§4.1).
func (cq *cameraQueue) process(ctx context.Context, cameraID string, pipeline CameraPipeline, frame *model.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CAM:%s] pipeline panic on frame_id=%d: %v", cameraID, frame.FrameID, r)
		}
	}()
	pipeline.Process(ctx, frame)
	metrics.FramesProcessed.WithLabelValues(cameraID).Inc()
}
