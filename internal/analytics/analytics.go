// Package analytics implements the §4.5 zone evaluator and per-frame
// analytics derivation: people count, crowd density, average speed, flow,
// and congestion classification.
package analytics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/technosupport/crowdwatch/internal/model"
)

// Config holds the analytics stage's tunables (§4.5/§4.6 defaults).
type Config struct {
	DensityNorm       float64
	ReferenceSpeed    float64
	SpeedJumpThreshold float64
	// KDEBandwidth controls the spatial spread of the Gaussian kernel used
	// for the crowd density estimate; tuned in pixels.
	KDEBandwidth float64
}

func DefaultConfig() Config {
	return Config{
		DensityNorm:        1.0,
		ReferenceSpeed:     2.0,
		SpeedJumpThreshold: 1.5,
		KDEBandwidth:       80,
	}
}

// TrackMetric carries the per-track kinematics the risk stage needs on top
// of the aggregate AnalyticsSample.
type TrackMetric struct {
	TrackID  uint64
	Speed    float64
	Velocity model.Flow // unit-less, pixels/second
}

// Compute derives one AnalyticsSample and the per-track kinematics behind
// it, from the confirmed tracks of a single camera's current frame.
func Compute(cameraID string, tracks []model.Track, ts time.Time, cfg Config) (model.AnalyticsSample, []TrackMetric) {
	sample := model.AnalyticsSample{
		CameraID:   cameraID,
		Timestamp:  ts,
		Congestion: model.CongestionLow,
	}
	confirmed := make([]model.Track, 0, len(tracks))
	for _, tr := range tracks {
		if tr.State == model.TrackConfirmed {
			confirmed = append(confirmed, tr)
		}
	}
	sample.PeopleCount = len(confirmed)
	if len(confirmed) == 0 {
		return sample, nil
	}

	metrics := make([]TrackMetric, len(confirmed))
	speeds := make([]float64, len(confirmed))
	centers := make([][2]float64, len(confirmed))
	var sumVX, sumVY float64

	for i, tr := range confirmed {
		cx, cy := tr.BBox.X+tr.BBox.W/2, tr.BBox.Y+tr.BBox.H/2
		centers[i] = [2]float64{cx, cy}

		speed, vx, vy := speedAndVelocity(tr, ts)
		speeds[i] = speed
		metrics[i] = TrackMetric{TrackID: tr.TrackID, Speed: speed, Velocity: model.Flow{X: vx, Y: vy}}
		sumVX += vx
		sumVY += vy
	}

	sample.Density = clip01(kernelDensity(centers, cfg.KDEBandwidth) / cfg.DensityNorm)
	sample.Congestion = congestionFromDensity(sample.Density)
	sample.AvgSpeed = stat.Mean(speeds, nil)

	n := float64(len(confirmed))
	flowX, flowY := sumVX/n, sumVY/n
	sample.Flow = normalizeFlow(flowX, flowY)

	return sample, metrics
}

// speedAndVelocity returns the instantaneous speed and velocity components
// for a track, using its previous box/timestamp. A track with no previous
// observation (first frame confirmed) has speed/velocity 0.
func speedAndVelocity(tr model.Track, ts time.Time) (speed, vx, vy float64) {
	if tr.PrevTS.IsZero() {
		return 0, 0, 0
	}
	dt := ts.Sub(tr.PrevTS).Seconds()
	if dt <= 0 {
		return 0, 0, 0
	}
	cx, cy := tr.BBox.X+tr.BBox.W/2, tr.BBox.Y+tr.BBox.H/2
	px, py := tr.PrevBBox.X+tr.PrevBBox.W/2, tr.PrevBBox.Y+tr.PrevBBox.H/2
	dx, dy := cx-px, cy-py
	dist := math.Hypot(dx, dy)
	return dist / dt, dx / dt, dy / dt
}

// kernelDensity returns the mean, over all points, of the sum of Gaussian
// kernel contributions from every other point — a crude but stateless
// proxy for local crowding that increases both with count and proximity.
func kernelDensity(centers [][2]float64, bandwidth float64) float64 {
	n := len(centers)
	if n <= 1 {
		return 0 // density reflects proximity; a lone person has none to be close to
	}
	if bandwidth <= 0 {
		bandwidth = 1
	}
	perPoint := make([]float64, n)
	for i := range centers {
		var sum float64
		for j := range centers {
			if i == j {
				continue
			}
			dx := centers[i][0] - centers[j][0]
			dy := centers[i][1] - centers[j][1]
			d2 := dx*dx + dy*dy
			sum += math.Exp(-d2 / (2 * bandwidth * bandwidth))
		}
		perPoint[i] = sum
	}
	return stat.Mean(perPoint, nil)
}

func congestionFromDensity(density float64) model.Congestion {
	switch {
	case density < 0.33:
		return model.CongestionLow
	case density < 0.66:
		return model.CongestionMedium
	default:
		return model.CongestionHigh
	}
}

func normalizeFlow(x, y float64) model.Flow {
	norm := math.Hypot(x, y)
	if norm == 0 {
		return model.Flow{}
	}
	return model.Flow{X: x / norm, Y: y / norm}
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
