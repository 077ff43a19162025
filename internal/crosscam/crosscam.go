// Package crosscam implements the §4.8 cross-camera matcher: an
// asynchronous consumer of entry/exit events that links a track's exit on
// one camera to its re-entry on another via re-id embedding similarity.
package crosscam

import (
	"strconv"
	"sync"
	"time"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/vision/reid"
)

// Config holds the matcher's tunables (§4.8 defaults).
type Config struct {
	SimThreshold float64
	Window       time.Duration
}

func DefaultConfig() Config {
	return Config{SimThreshold: 0.70, Window: 10 * time.Minute}
}

type pendingEvent struct {
	event     model.EntryExitEvent
	embedding []float32
}

// Matcher holds the sliding window of recent entry/exit events and the
// idempotent movement table, keyed across all cameras. It must not be
// shared beyond one process's matcher worker, but is safe for concurrent
// Ingest calls from that worker's subscription handlers.
type Matcher struct {
	mu        sync.Mutex
	cfg       Config
	entries   []pendingEvent
	exits     []pendingEvent
	movements map[string]model.CrossCameraMovement
}

func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg, movements: make(map[string]model.CrossCameraMovement)}
}

// Ingest records one entry/exit event with its track's current embedding
// and returns any CrossCameraMovement records created or updated as a
// result. now is the wall-clock time used to prune the matching window;
// passing it explicitly keeps the function deterministic for tests.
func (m *Matcher) Ingest(ev model.EntryExitEvent, embedding []float32, now time.Time) []model.CrossCameraMovement {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(now)

	var result []model.CrossCameraMovement
	switch ev.Kind {
	case model.EventEntry:
		if best, sim, ok := bestMatch(m.exits, ev, embedding, m.cfg.SimThreshold, func(exitTS time.Time) bool {
			return !exitTS.Before(ev.Timestamp.Add(-m.cfg.Window)) && exitTS.Before(ev.Timestamp)
		}); ok {
			mv := buildMovement(best.event, ev, sim)
			if updated, changed := m.upsert(mv); changed {
				result = append(result, updated)
			}
		}
		m.entries = append(m.entries, pendingEvent{event: ev, embedding: embedding})
	case model.EventExit:
		if best, sim, ok := bestMatch(m.entries, ev, embedding, m.cfg.SimThreshold, func(entryTS time.Time) bool {
			return entryTS.After(ev.Timestamp) && !entryTS.After(ev.Timestamp.Add(m.cfg.Window))
		}); ok {
			mv := buildMovement(ev, best.event, sim)
			if updated, changed := m.upsert(mv); changed {
				result = append(result, updated)
			}
		}
		m.exits = append(m.exits, pendingEvent{event: ev, embedding: embedding})
	}
	return result
}

// bestMatch finds, among candidates on a different camera within the
// window (as decided by inWindow), the highest-similarity match at or
// above threshold, tie-broken by the smallest time gap to ev.
func bestMatch(candidates []pendingEvent, ev model.EntryExitEvent, embedding []float32, threshold float64, inWindow func(time.Time) bool) (pendingEvent, float64, bool) {
	var best pendingEvent
	var bestSim float64
	var bestDelta time.Duration
	found := false

	for _, c := range candidates {
		if c.event.CameraID == ev.CameraID {
			continue
		}
		if !inWindow(c.event.Timestamp) {
			continue
		}
		sim := reid.Similarity(embedding, c.embedding)
		if sim < threshold {
			continue
		}
		delta := absDuration(ev.Timestamp.Sub(c.event.Timestamp))
		if !found || sim > bestSim || (sim == bestSim && delta < bestDelta) {
			best, bestSim, bestDelta, found = c, sim, delta, true
		}
	}
	return best, bestSim, found
}

// buildMovement takes the two matched events in chronological order —
// origin is the earlier zone-exit that left the track's last camera's
// view, destination is the later zone-entry where it reappeared — and
// maps them onto the entry_*/exit_* fields accordingly, regardless of
// which event's own Kind is "entry" or "exit". This keeps DurationS
// (destination − origin) non-negative per the entry_ts ≤ exit_ts invariant.
func buildMovement(origin, destination model.EntryExitEvent, sim float64) model.CrossCameraMovement {
	return model.CrossCameraMovement{
		EntryCamera: origin.CameraID,
		EntryZone:   origin.ZoneID,
		EntryTrack:  origin.TrackID,
		EntryTS:     origin.Timestamp,
		ExitCamera:  destination.CameraID,
		ExitZone:    destination.ZoneID,
		ExitTrack:   destination.TrackID,
		ExitTS:      destination.Timestamp,
		Similarity:  sim,
		Confidence:  confidenceFor(sim),
		DurationS:   destination.Timestamp.Sub(origin.Timestamp).Seconds(),
	}
}

func confidenceFor(sim float64) model.MatchConfidence {
	switch {
	case sim >= 0.85:
		return model.ConfidenceHigh
	case sim >= 0.75:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// upsert is idempotent on (entry_track, entry_camera, exit_track,
// exit_camera): a new record replaces a prior one only if its similarity
// is strictly higher.
func (m *Matcher) upsert(mv model.CrossCameraMovement) (model.CrossCameraMovement, bool) {
	key := movementKey(mv.EntryCamera, mv.EntryTrack, mv.ExitCamera, mv.ExitTrack)
	existing, ok := m.movements[key]
	if ok && existing.Similarity >= mv.Similarity {
		return existing, false
	}
	m.movements[key] = mv
	return mv, true
}

func movementKey(entryCam string, entryTrack uint64, exitCam string, exitTrack uint64) string {
	return entryCam + "|" + strconv.FormatUint(entryTrack, 10) + "|" + exitCam + "|" + strconv.FormatUint(exitTrack, 10)
}

// prune drops events that have aged out of any possible future match
// window, keeping the pending lists bounded for a long-running matcher.
func (m *Matcher) prune(now time.Time) {
	cutoff := now.Add(-2 * m.cfg.Window)
	m.entries = pruneList(m.entries, cutoff)
	m.exits = pruneList(m.exits, cutoff)
}

func pruneList(list []pendingEvent, cutoff time.Time) []pendingEvent {
	out := list[:0]
	for _, e := range list {
		if e.event.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
