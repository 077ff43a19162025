// Package risk implements the §4.6 risk scoring and alert generation stage:
// a weighted combination of crowd-dynamics factors classified into
// NORMAL/WARNING/CRITICAL, with alerts raised on level change or sustained
// elevated level.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/google/uuid"
	"github.com/technosupport/crowdwatch/internal/analytics"
	"github.com/technosupport/crowdwatch/internal/model"
)

// Config holds the risk stage's tunables (§4.6 defaults).
type Config struct {
	ReferenceSpeed        float64
	SpeedJumpThreshold    float64
	AlertResampleInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReferenceSpeed:        2.0,
		SpeedJumpThreshold:    1.5,
		AlertResampleInterval: 30 * time.Second,
	}
}

// Generator holds one camera's shadow state for sudden-movement detection
// and alert resampling. It is not safe to share across cameras.
type Generator struct {
	mu sync.Mutex

	cameraID string
	cfg      Config

	lastSpeed      map[uint64]float64
	level          model.RiskLevel
	levelSince     time.Time
	lastAlertAt    time.Time
	zoneLastAlert  map[string]time.Time
}

func NewGenerator(cameraID string, cfg Config) *Generator {
	return &Generator{
		cameraID:      cameraID,
		cfg:           cfg,
		lastSpeed:     make(map[uint64]float64),
		level:         model.RiskNormal,
		zoneLastAlert: make(map[string]time.Time),
	}
}

// Evaluate scores the current frame, fills in sample.RiskScore/RiskLevel,
// and returns any alerts the risk/zone-capacity rules produce this frame.
func (g *Generator) Evaluate(sample *model.AnalyticsSample, metrics []analytics.TrackMetric, zones []model.Zone, now time.Time) []model.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	speedVariance := g.speedVariance(metrics)
	congestionFactor := congestionToFactor(sample.Congestion)
	directionalConflict := g.directionalConflict(metrics)
	suddenMovement := g.suddenMovement(metrics)

	r := 0.30*sample.Density +
		0.25*speedVariance +
		0.20*congestionFactor +
		0.15*directionalConflict +
		0.10*suddenMovement
	sample.RiskScore = clip01(r)
	sample.RiskLevel = levelFromScore(sample.RiskScore)

	var alerts []model.Alert
	if sample.RiskLevel != g.level {
		g.level = sample.RiskLevel
		g.levelSince = now
		if sample.RiskLevel != model.RiskNormal {
			alerts = append(alerts, g.buildAlert(sample, speedVariance, congestionFactor, directionalConflict, suddenMovement, now))
			g.lastAlertAt = now
		}
	} else if sample.RiskLevel != model.RiskNormal && now.Sub(g.lastAlertAt) >= g.cfg.AlertResampleInterval {
		alerts = append(alerts, g.buildAlert(sample, speedVariance, congestionFactor, directionalConflict, suddenMovement, now))
		g.lastAlertAt = now
	}

	alerts = append(alerts, g.zoneCapacityAlerts(zones, now)...)
	return alerts
}

func (g *Generator) speedVariance(metrics []analytics.TrackMetric) float64 {
	if len(metrics) <= 1 {
		return 0
	}
	speeds := make([]float64, len(metrics))
	for i, m := range metrics {
		speeds[i] = m.Speed
	}
	ref := g.cfg.ReferenceSpeed
	if ref <= 0 {
		ref = 1
	}
	return clip01(stat.StdDev(speeds, nil) / ref)
}

func (g *Generator) directionalConflict(metrics []analytics.TrackMetric) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sumX, sumY float64
	var n int
	for _, m := range metrics {
		speed := math.Hypot(m.Velocity.X, m.Velocity.Y)
		if speed == 0 {
			continue
		}
		sumX += m.Velocity.X / speed
		sumY += m.Velocity.Y / speed
		n++
	}
	if n == 0 {
		return 0
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)
	return clip01(1 - math.Hypot(meanX, meanY))
}

func (g *Generator) suddenMovement(metrics []analytics.TrackMetric) float64 {
	if len(metrics) == 0 {
		g.lastSpeed = make(map[uint64]float64)
		return 0
	}
	jumps := 0
	seen := make(map[uint64]float64, len(metrics))
	for _, m := range metrics {
		seen[m.TrackID] = m.Speed
		if prev, ok := g.lastSpeed[m.TrackID]; ok {
			if math.Abs(m.Speed-prev) > g.cfg.SpeedJumpThreshold {
				jumps++
			}
		}
	}
	g.lastSpeed = seen
	return float64(jumps) / float64(len(metrics))
}

func (g *Generator) buildAlert(sample *model.AnalyticsSample, speedVariance, congestionFactor, directionalConflict, suddenMovement float64, now time.Time) model.Alert {
	kind := dominantKind(sample.Density, speedVariance, congestionFactor, directionalConflict, suddenMovement)
	return model.Alert{
		ID:        uuid.NewString(),
		CameraID:  g.cameraID,
		Kind:      kind,
		Severity:  sample.RiskLevel,
		RiskScore: sample.RiskScore,
		Message:   alertMessage(kind, sample.RiskLevel, sample.RiskScore),
		Timestamp: now,
	}
}

func (g *Generator) zoneCapacityAlerts(zones []model.Zone, now time.Time) []model.Alert {
	var alerts []model.Alert
	for _, z := range zones {
		if z.MaxCapacity == nil || z.CurrentOccupancy <= *z.MaxCapacity {
			continue
		}
		last, ok := g.zoneLastAlert[z.ID]
		if ok && now.Sub(last) < g.cfg.AlertResampleInterval {
			continue
		}
		g.zoneLastAlert[z.ID] = now
		alerts = append(alerts, model.Alert{
			ID:        uuid.NewString(),
			CameraID:  g.cameraID,
			Kind:      model.AlertZoneOvercapacty,
			Severity:  model.RiskWarning,
			Message:   fmt.Sprintf("zone %s occupancy %d exceeds capacity %d", z.ID, z.CurrentOccupancy, *z.MaxCapacity),
			Timestamp: now,
		})
	}
	return alerts
}

func dominantKind(density, speedVariance, congestionFactor, directionalConflict, suddenMovement float64) model.AlertKind {
	densityScore := 0.30 * density
	congestionScore := 0.20 * congestionFactor
	stampedeScore := 0.25*speedVariance + 0.15*directionalConflict + 0.10*suddenMovement

	kind, best := model.AlertHighDensity, densityScore
	if congestionScore > best {
		kind, best = model.AlertCongestion, congestionScore
	}
	if stampedeScore > best {
		kind, best = model.AlertStampedeRisk, stampedeScore
	}
	return kind
}

func alertMessage(kind model.AlertKind, level model.RiskLevel, score float64) string {
	return fmt.Sprintf("%s risk %s (score %.2f)", kind, level, score)
}

func congestionToFactor(c model.Congestion) float64 {
	switch c {
	case model.CongestionLow:
		return 0
	case model.CongestionMedium:
		return 0.5
	default:
		return 1
	}
}

func levelFromScore(r float64) model.RiskLevel {
	switch {
	case r < 0.4:
		return model.RiskNormal
	case r < 0.7:
		return model.RiskWarning
	default:
		return model.RiskCritical
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
