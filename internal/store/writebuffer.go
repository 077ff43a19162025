package store

import (
	"context"
	"log"
	"sync"

	"github.com/technosupport/crowdwatch/internal/metrics"
)

// writeJob is one queued persistence call, such as an analytics sample,
// alert or entry/exit event insert, a zone occupancy update, or a camera
// last-frame touch.
type writeJob struct {
	cameraID string
	run      func(ctx context.Context) error
}

type cameraWriteQueue struct {
	mu       sync.Mutex
	jobs     []writeJob
	notifyCh chan struct{}
	stopCh   chan struct{}
	stopped  chan struct{}
}

// WriteBuffer decouples the pipeline's persistence calls from Postgres
// latency: one bounded, drop-oldest queue per camera, drained by a single
// worker so writes for a camera apply in submission order without
// blocking the pipeline stage that produced them.
type WriteBuffer struct {
	mu       sync.RWMutex
	cameras  map[string]*cameraWriteQueue
	capacity int
}

func NewWriteBuffer(capacity int) *WriteBuffer {
	return &WriteBuffer{cameras: make(map[string]*cameraWriteQueue), capacity: capacity}
}

func (w *WriteBuffer) queueFor(cameraID string) *cameraWriteQueue {
	w.mu.RLock()
	q, ok := w.cameras[cameraID]
	w.mu.RUnlock()
	if ok {
		return q
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if q, ok = w.cameras[cameraID]; ok {
		return q
	}
	q = &cameraWriteQueue{
		notifyCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	w.cameras[cameraID] = q
	go w.run(cameraID, q)
	return q
}

// Submit enqueues run for cameraID. If the queue is at capacity, the
// oldest pending job is dropped to make room — persistence lag must never
// push back on the stage graph that produced the data.
func (w *WriteBuffer) Submit(cameraID string, run func(ctx context.Context) error) {
	q := w.queueFor(cameraID)
	q.mu.Lock()
	if len(q.jobs) >= w.capacity {
		q.jobs = q.jobs[1:]
		metrics.WriteBufferDropped.WithLabelValues(cameraID).Inc()
	}
	q.jobs = append(q.jobs, writeJob{cameraID: cameraID, run: run})
	depth := len(q.jobs)
	q.mu.Unlock()

	metrics.WriteBufferDepth.WithLabelValues(cameraID).Set(float64(depth))
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

func (w *WriteBuffer) run(cameraID string, q *cameraWriteQueue) {
	defer close(q.stopped)
	ctx := context.Background()
	for {
		job, ok := q.pop()
		if ok {
			if err := job.run(ctx); err != nil {
				log.Printf("[store] write job failed for camera %s: %v", cameraID, err)
			}
			metrics.WriteBufferDepth.WithLabelValues(cameraID).Set(float64(q.len()))
			continue
		}
		select {
		case <-q.notifyCh:
		case <-q.stopCh:
			q.drain(ctx, cameraID)
			return
		}
	}
}

func (q *cameraWriteQueue) pop() (writeJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return writeJob{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

func (q *cameraWriteQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *cameraWriteQueue) drain(ctx context.Context, cameraID string) {
	for {
		job, ok := q.pop()
		if !ok {
			return
		}
		if err := job.run(ctx); err != nil {
			log.Printf("[store] write job failed for camera %s during drain: %v", cameraID, err)
		}
	}
}

// Stop halts the worker for cameraID once its queue drains, or is a no-op
// if that camera never submitted any jobs.
func (w *WriteBuffer) Stop(cameraID string) {
	w.mu.Lock()
	q, ok := w.cameras[cameraID]
	if ok {
		delete(w.cameras, cameraID)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	close(q.stopCh)
	<-q.stopped
}
