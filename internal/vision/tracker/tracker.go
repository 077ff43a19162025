// Package tracker implements the §4.3 SORT-style multi-object tracker:
// constant-velocity prediction, greedy IoU matching, tentative/confirmed
// lifecycle, and per-camera track_id allocation.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/technosupport/crowdwatch/internal/model"
)

// Config holds the tracker stage's tunables (§4.3 defaults).
type Config struct {
	IoUThreshold float64
	MinHits      int
	MaxAge       int
}

func DefaultConfig() Config {
	return Config{IoUThreshold: 0.5, MinHits: 3, MaxAge: 30}
}

type trackEntry struct {
	track    model.Track
	center   *centerFilter
	predicted model.BBox
}

// Tracker holds the private per-camera tracker state; it must not be
// shared across cameras (§4.3: "Tracker state is private to the camera").
type Tracker struct {
	mu       sync.Mutex
	cameraID string
	cfg      Config
	nextID   uint64
	active   map[uint64]*trackEntry
}

func New(cameraID string, cfg Config) *Tracker {
	return &Tracker{cameraID: cameraID, cfg: cfg, active: make(map[uint64]*trackEntry)}
}

// Update associates detections to existing tracks, ages out unmatched
// tracks, allocates new tentative tracks for unmatched detections, and
// returns only the confirmed tracks per §4.3.
func (t *Tracker) Update(detections []model.Detection, frameTS time.Time) []model.Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	// 1. Predict.
	ids := make([]uint64, 0, len(t.active))
	for id, e := range t.active {
		px, py := e.center.Predict()
		w, h := e.track.BBox.W, e.track.BBox.H
		e.predicted = model.BBox{X: px - w/2, Y: py - h/2, W: w, H: h}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// 2. Greedy-by-descending-IoU matching, tie-break by higher detection
	// confidence then lower track_id.
	type candidate struct {
		trackID uint64
		detIdx  int
		iou     float64
		conf    float64
	}
	var candidates []candidate
	for _, id := range ids {
		e := t.active[id]
		for di, d := range detections {
			iou := e.predicted.IoU(d.BBox)
			if iou >= t.cfg.IoUThreshold {
				candidates = append(candidates, candidate{trackID: id, detIdx: di, iou: iou, conf: d.Confidence})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].iou != candidates[j].iou {
			return candidates[i].iou > candidates[j].iou
		}
		if candidates[i].conf != candidates[j].conf {
			return candidates[i].conf > candidates[j].conf
		}
		return candidates[i].trackID < candidates[j].trackID
	})

	matchedTrack := make(map[uint64]bool)
	matchedDet := make(map[int]bool)
	for _, c := range candidates {
		if matchedTrack[c.trackID] || matchedDet[c.detIdx] {
			continue
		}
		matchedTrack[c.trackID] = true
		matchedDet[c.detIdx] = true
		t.applyMatch(c.trackID, detections[c.detIdx], frameTS)
	}

	// 3. Unmatched detections become new tentative tracks.
	for di, d := range detections {
		if matchedDet[di] {
			continue
		}
		t.nextID++
		id := t.nextID
		e := &trackEntry{
			track: model.Track{
				TrackID:       id,
				CameraID:      t.cameraID,
				FirstSeen:     frameTS,
				LastSeen:      frameTS,
				TotalFrames:   1,
				AvgConfidence: d.Confidence,
				State:         model.TrackTentative,
				BBox:          d.BBox,
			},
			center: newCenterFilter(),
		}
		ccx, ccy := d.BBox.X+d.BBox.W/2, d.BBox.Y+d.BBox.H/2
		e.center.Observe(ccx, ccy)
		if e.track.TotalFrames >= t.cfg.MinHits {
			e.track.State = model.TrackConfirmed
		}
		t.active[id] = e
	}

	// 4. Unmatched tracks age out.
	for _, id := range ids {
		if matchedTrack[id] {
			continue
		}
		e := t.active[id]
		e.track.Misses++
		if e.track.Misses >= t.cfg.MaxAge {
			e.track.State = model.TrackTerminated
			delete(t.active, id)
			continue
		}
		e.track.State = model.TrackLost
	}

	// 5. Emit only confirmed tracks, across the full active set so that a
	// fresh track confirmed on its first frame (MinHits==1) is included.
	var out []model.Track
	for _, e := range t.active {
		if e.track.State == model.TrackConfirmed {
			out = append(out, e.track)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

func (t *Tracker) applyMatch(id uint64, d model.Detection, frameTS time.Time) {
	e := t.active[id]
	ccx, ccy := d.BBox.X+d.BBox.W/2, d.BBox.Y+d.BBox.H/2
	e.center.Observe(ccx, ccy)

	tr := &e.track
	tr.PrevBBox = tr.BBox
	tr.PrevTS = tr.LastSeen
	tr.BBox = d.BBox
	tr.LastSeen = frameTS
	tr.TotalFrames++
	tr.Misses = 0
	n := float64(tr.TotalFrames)
	tr.AvgConfidence = ((n-1)*tr.AvgConfidence + d.Confidence) / n
	if tr.State == model.TrackTentative && tr.TotalFrames >= t.cfg.MinHits {
		tr.State = model.TrackConfirmed
	} else if tr.State == model.TrackLost {
		tr.State = model.TrackConfirmed
	}
}

// ActiveCount returns the number of tracks (any state) currently held.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// UpdateEmbedding stores the re-id stage's EMA-blended appearance vector
// against trackID, so downstream cross-camera matching can read it off the
// next Update call's returned tracks. A miss (track aged out between the
// detection pass and the re-id pass completing) is silently ignored.
func (t *Tracker) UpdateEmbedding(trackID uint64, embedding []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.active[trackID]; ok {
		e.track.Embedding = embedding
	}
}
