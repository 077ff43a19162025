// Package registry holds the in-memory state shared between the REST API
// and the per-camera pipeline workers: the current zone set per camera
// (so Processor.Process never blocks a frame on a database round trip) and
// the set of live camera pipelines the Coordinator drives.
package registry

import (
	"context"
	"sync"

	"github.com/technosupport/crowdwatch/internal/ingest"
	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/store"
)

// ZoneCache is an in-memory mirror of each camera's configured zones,
// refreshed on every zone CRUD call through the API and read by the
// pipeline's zone evaluator on every frame. It implements
// pipeline.ZoneProvider.
type ZoneCache struct {
	mu    sync.RWMutex
	zones map[string][]model.Zone
}

func NewZoneCache() *ZoneCache {
	return &ZoneCache{zones: make(map[string][]model.Zone)}
}

// ZonesFor returns a copy of cameraID's current zones.
func (z *ZoneCache) ZonesFor(cameraID string) []model.Zone {
	z.mu.RLock()
	defer z.mu.RUnlock()
	zones := z.zones[cameraID]
	out := make([]model.Zone, len(zones))
	copy(out, zones)
	return out
}

// Set replaces cameraID's zone list wholesale.
func (z *ZoneCache) Set(cameraID string, zones []model.Zone) {
	z.mu.Lock()
	defer z.mu.Unlock()
	cp := make([]model.Zone, len(zones))
	copy(cp, zones)
	z.zones[cameraID] = cp
}

// Upsert inserts or replaces one zone by ID within cameraID's list.
func (z *ZoneCache) Upsert(cameraID string, zone model.Zone) {
	z.mu.Lock()
	defer z.mu.Unlock()
	zones := z.zones[cameraID]
	for i := range zones {
		if zones[i].ID == zone.ID {
			zones[i] = zone
			z.zones[cameraID] = zones
			return
		}
	}
	z.zones[cameraID] = append(zones, zone)
}

// Remove drops zoneID from cameraID's list.
func (z *ZoneCache) Remove(cameraID, zoneID string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	zones := z.zones[cameraID]
	for i, zn := range zones {
		if zn.ID == zoneID {
			z.zones[cameraID] = append(zones[:i], zones[i+1:]...)
			return
		}
	}
}

// LoadFromStore seeds the cache from Postgres at startup, so a restarted
// server resumes zone evaluation without waiting for a CRUD call.
func (z *ZoneCache) LoadFromStore(ctx context.Context, st *store.Store, cameraIDs []string) error {
	for _, id := range cameraIDs {
		zones, err := st.Zones.ListByCamera(ctx, id)
		if err != nil {
			return err
		}
		z.Set(id, zones)
	}
	return nil
}

// Cameras tracks the set of camera pipelines currently registered with the
// ingest coordinator, so the API can answer "is this camera live" and
// clean up on deregistration.
type Cameras struct {
	mu          sync.RWMutex
	coordinator *ingest.Coordinator
	active      map[string]bool
}

func NewCameras(coordinator *ingest.Coordinator) *Cameras {
	return &Cameras{coordinator: coordinator, active: make(map[string]bool)}
}

func (c *Cameras) Register(ctx context.Context, cameraID string, pipeline ingest.CameraPipeline) {
	c.mu.Lock()
	c.active[cameraID] = true
	c.mu.Unlock()
	c.coordinator.Register(ctx, cameraID, pipeline)
}

func (c *Cameras) Unregister(cameraID string) {
	c.mu.Lock()
	delete(c.active, cameraID)
	c.mu.Unlock()
	c.coordinator.Unregister(cameraID)
}

func (c *Cameras) IsActive(cameraID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active[cameraID]
}
