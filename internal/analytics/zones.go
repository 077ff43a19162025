package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/technosupport/crowdwatch/internal/model"
)

// ZoneEvaluator tracks per-(track,zone) inside/outside membership for one
// camera and emits entry/exit events on transitions, per §4.5.
type ZoneEvaluator struct {
	mu     sync.Mutex
	inside map[uint64]map[string]bool // trackID -> zoneID -> last known inside bit
}

func NewZoneEvaluator() *ZoneEvaluator {
	return &ZoneEvaluator{inside: make(map[uint64]map[string]bool)}
}

// Evaluate checks every confirmed track against every zone and returns the
// entry/exit events produced by this frame's transitions. zones is mutated
// in place to reflect current_occupancy changes.
func (z *ZoneEvaluator) Evaluate(tracks []model.Track, zones []model.Zone, ts time.Time) []model.EntryExitEvent {
	z.mu.Lock()
	defer z.mu.Unlock()

	var events []model.EntryExitEvent
	for zi := range zones {
		zone := &zones[zi]
		for _, tr := range tracks {
			if tr.State != model.TrackConfirmed {
				continue
			}
			bx, by := tr.BBox.BottomCenter()
			cur := PointInPolygon(bx, by, zone.Polygon)

			perTrack, ok := z.inside[tr.TrackID]
			if !ok {
				perTrack = make(map[string]bool)
				z.inside[tr.TrackID] = perTrack
			}
			prev, seen := perTrack[zone.ID]

			switch {
			case !seen && cur:
				events = append(events, z.event(zone, tr.TrackID, model.EventEntry, ts))
				if zone.Type == model.ZoneEntry {
					zone.CurrentOccupancy++
				}
			case seen && !prev && cur:
				events = append(events, z.event(zone, tr.TrackID, model.EventEntry, ts))
				if zone.Type == model.ZoneEntry {
					zone.CurrentOccupancy++
				}
			case seen && prev && !cur:
				events = append(events, z.event(zone, tr.TrackID, model.EventExit, ts))
				if zone.Type == model.ZoneExit && zone.CurrentOccupancy > 0 {
					zone.CurrentOccupancy--
				}
			}
			perTrack[zone.ID] = cur
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].ZoneID != events[j].ZoneID {
			return events[i].ZoneID < events[j].ZoneID
		}
		return events[i].TrackID < events[j].TrackID
	})
	return events
}

func (z *ZoneEvaluator) event(zone *model.Zone, trackID uint64, kind model.EventKind, ts time.Time) model.EntryExitEvent {
	return model.EntryExitEvent{CameraID: zone.CameraID, ZoneID: zone.ID, TrackID: trackID, Kind: kind, Timestamp: ts}
}

// Forget drops membership state for a track, e.g. once it terminates, so the
// map doesn't grow unbounded across a long-running camera.
func (z *ZoneEvaluator) Forget(trackID uint64) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.inside, trackID)
}
