// Package model holds the shared entity types passed between pipeline
// stages, the store, and the API layer.
package model

import "time"

// CameraStatus is the lifecycle state of a registered camera.
type CameraStatus string

const (
	CameraActive   CameraStatus = "active"
	CameraInactive CameraStatus = "inactive"
)

// Camera is a registered edge camera feeding frames into the pipeline.
type Camera struct {
	ID            string       `json:"camera_id"`
	EdgeID        string       `json:"edge_id"`
	Location      string       `json:"location"`
	Resolution    string       `json:"resolution"`
	FPS           int          `json:"fps"`
	Status        CameraStatus `json:"status"`
	LastFrameTime time.Time    `json:"last_frame_time"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Frame is one decoded image handed to the vision stage graph.
type Frame struct {
	CameraID  string    `json:"camera_id"`
	FrameID   uint64    `json:"frame_id"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	JPEG      []byte    `json:"-"`
}

// BBox is an axis-aligned pixel box: top-left (X,Y), width W, height H.
type BBox struct {
	X, Y, W, H float64
}

// BottomCenter returns the point used for zone membership tests.
func (b BBox) BottomCenter() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H
}

// IoU returns the intersection-over-union of two boxes in [0,1].
func (b BBox) IoU(o BBox) float64 {
	ix1, iy1 := max(b.X, o.X), max(b.Y, o.Y)
	ix2, iy2 := min(b.X+b.W, o.X+o.W), min(b.Y+b.H, o.Y+o.H)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.W*b.H + o.W*o.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is one person detection within a frame.
type Detection struct {
	BBox       BBox
	Confidence float64
	Class      string
	TrackID    uint64 // 0 if unassigned
}

// TrackState is the lifecycle state of a tracked person.
type TrackState string

const (
	TrackTentative  TrackState = "tentative"
	TrackConfirmed  TrackState = "confirmed"
	TrackLost       TrackState = "lost"
	TrackTerminated TrackState = "terminated"
)

// Track is a persistent per-camera identity produced by the tracker stage.
type Track struct {
	TrackID       uint64     `json:"track_id"`
	CameraID      string     `json:"camera_id"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	TotalFrames   int        `json:"total_frames"`
	AvgConfidence float64    `json:"avg_confidence"`
	State         TrackState `json:"state"`
	Embedding     []float32  `json:"-"`
	BBox          BBox       `json:"-"`
	PrevBBox      BBox       `json:"-"`
	PrevTS        time.Time  `json:"-"`
	Misses        int        `json:"-"`
}

// ZoneType describes the semantics applied to entry/exit transitions.
type ZoneType string

const (
	ZoneEntry      ZoneType = "entry"
	ZoneExit       ZoneType = "exit"
	ZoneMonitor    ZoneType = "monitor"
	ZoneRestricted ZoneType = "restricted"
)

// Point is an integer pixel coordinate.
type Point struct {
	X, Y int
}

// Zone is a polygonal region of interest on one camera's frame.
type Zone struct {
	ID               string   `json:"id"`
	CameraID         string   `json:"camera_id"`
	Name             string   `json:"name"`
	Type             ZoneType `json:"type"`
	Polygon          []Point  `json:"polygon"`
	MaxCapacity      *int     `json:"max_capacity,omitempty"`
	CurrentOccupancy int      `json:"current_occupancy"`
	Status           string   `json:"status"`
}

// EventKind distinguishes zone crossing direction.
type EventKind string

const (
	EventEntry EventKind = "entry"
	EventExit  EventKind = "exit"
)

// EntryExitEvent records one directed crossing of a track through a zone.
type EntryExitEvent struct {
	CameraID  string    `json:"camera_id"`
	ZoneID    string    `json:"zone_id"`
	TrackID   uint64    `json:"track_id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Congestion is the three-valued crowding classification.
type Congestion string

const (
	CongestionLow    Congestion = "low"
	CongestionMedium Congestion = "medium"
	CongestionHigh   Congestion = "high"
)

// RiskLevel is the three-valued risk classification.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "NORMAL"
	RiskWarning  RiskLevel = "WARNING"
	RiskCritical RiskLevel = "CRITICAL"
)

// Flow is an L2-normalized 2D crowd movement vector.
type Flow struct {
	X, Y float64
}

// AnalyticsSample is the per-frame analytics output for one camera.
type AnalyticsSample struct {
	CameraID    string     `json:"camera_id"`
	Timestamp   time.Time  `json:"timestamp"`
	PeopleCount int        `json:"people_count"`
	Density     float64    `json:"density"`
	AvgSpeed    float64    `json:"avg_speed"`
	Flow        Flow       `json:"flow"`
	Congestion  Congestion `json:"congestion"`
	RiskScore   float64    `json:"risk_score"`
	RiskLevel   RiskLevel  `json:"risk_level"`
}

// AlertKind enumerates the alert categories the risk stage can emit.
type AlertKind string

const (
	AlertHighDensity     AlertKind = "high_density"
	AlertStampedeRisk    AlertKind = "stampede_risk"
	AlertCongestion      AlertKind = "congestion"
	AlertZoneOvercapacty AlertKind = "zone_overcapacity"
)

// Alert is a graded, acknowledgeable risk notification.
type Alert struct {
	ID           string    `json:"id"`
	CameraID     string    `json:"camera_id"`
	Kind         AlertKind `json:"kind"`
	Severity     RiskLevel `json:"severity"`
	RiskScore    float64   `json:"risk_score"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// MatchConfidence grades a cross-camera similarity match.
type MatchConfidence string

const (
	ConfidenceLow    MatchConfidence = "low"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceHigh   MatchConfidence = "high"
)

// CrossCameraMovement links a track's chronologically earlier zone-exit
// (entry_* fields, where it left a camera's view) to its later zone-entry
// on another camera (exit_* fields, where it reappeared). entry_ts is
// always <= exit_ts and duration_s = exit_ts - entry_ts.
type CrossCameraMovement struct {
	EntryCamera string          `json:"entry_camera"`
	EntryZone   string          `json:"entry_zone,omitempty"`
	EntryTrack  uint64          `json:"entry_track"`
	EntryTS     time.Time       `json:"entry_ts"`
	ExitCamera  string          `json:"exit_camera"`
	ExitZone    string          `json:"exit_zone,omitempty"`
	ExitTrack   uint64          `json:"exit_track"`
	ExitTS      time.Time       `json:"exit_ts"`
	Similarity  float64         `json:"similarity"`
	Confidence  MatchConfidence `json:"confidence"`
	DurationS   float64         `json:"duration_s"`
}
