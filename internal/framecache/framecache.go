// Package framecache implements the §4.7 frame cache: a bounded,
// TTL-expiring ring of recently decoded frames per camera, feeding the
// live annotated stream without holding up the ingest path.
package framecache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/technosupport/crowdwatch/internal/model"
)

type entry struct {
	frame    model.Frame
	storedAt time.Time
}

type perCamera struct {
	mu        sync.Mutex
	lru       *lru.Cache[uint64, *entry]
	latestSeq uint64
	haveSeq   bool
}

// Cache holds one ring of up to Nframes frames per camera, each expiring
// TTL after it was stored. Safe for concurrent use by many readers and one
// writer per camera.
type Cache struct {
	mu       sync.RWMutex
	cameras  map[string]*perCamera
	capacity int
	ttl      time.Duration
}

func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{cameras: make(map[string]*perCamera), capacity: capacity, ttl: ttl}
}

func (c *Cache) camera(cameraID string) *perCamera {
	c.mu.RLock()
	pc, ok := c.cameras[cameraID]
	c.mu.RUnlock()
	if ok {
		return pc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pc, ok = c.cameras[cameraID]; ok {
		return pc
	}
	l, _ := lru.New[uint64, *entry](c.capacity)
	pc = &perCamera{lru: l}
	c.cameras[cameraID] = pc
	return pc
}

// Put stores frame under seq for cameraID and evicts expired entries for
// that camera. Sequence numbers are expected to be monotonically
// increasing per camera; an older seq than the current latest is accepted
// into the ring but does not advance GetLatest.
func (c *Cache) Put(cameraID string, seq uint64, frame model.Frame) {
	pc := c.camera(cameraID)
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.lru.Add(seq, &entry{frame: frame, storedAt: time.Now()})
	if !pc.haveSeq || seq >= pc.latestSeq {
		pc.latestSeq = seq
		pc.haveSeq = true
	}
	pc.evictExpiredLocked(c.ttl)
}

// GetLatest returns the most recently stored non-expired frame for
// cameraID, if any.
func (c *Cache) GetLatest(cameraID string) (model.Frame, bool) {
	pc := c.camera(cameraID)
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.evictExpiredLocked(c.ttl)
	if !pc.haveSeq {
		return model.Frame{}, false
	}
	e, ok := pc.lru.Peek(pc.latestSeq)
	if !ok {
		return model.Frame{}, false
	}
	return e.frame, true
}

// EvictExpired removes stale entries across every camera's ring. Put also
// evicts for its own camera on every call; this sweeps the rest, useful
// for cameras that have gone quiet.
func (c *Cache) EvictExpired() {
	c.mu.RLock()
	cams := make([]*perCamera, 0, len(c.cameras))
	for _, pc := range c.cameras {
		cams = append(cams, pc)
	}
	c.mu.RUnlock()

	for _, pc := range cams {
		pc.mu.Lock()
		pc.evictExpiredLocked(c.ttl)
		pc.mu.Unlock()
	}
}

func (pc *perCamera) evictExpiredLocked(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl)
	for _, seq := range pc.lru.Keys() {
		e, ok := pc.lru.Peek(seq)
		if ok && e.storedAt.Before(cutoff) {
			pc.lru.Remove(seq)
		}
	}
}
