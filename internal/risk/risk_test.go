package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/analytics"
	"github.com/technosupport/crowdwatch/internal/model"
)

func TestEvaluateZeroTracksIsNormal(t *testing.T) {
	g := NewGenerator("cam1", DefaultConfig())
	sample := &model.AnalyticsSample{Congestion: model.CongestionLow}
	alerts := g.Evaluate(sample, nil, nil, time.Now())
	assert.Equal(t, 0.0, sample.RiskScore)
	assert.Equal(t, model.RiskNormal, sample.RiskLevel)
	assert.Empty(t, alerts)
}

func TestEvaluateSingleTrackHasZeroVarianceAndConflict(t *testing.T) {
	g := NewGenerator("cam1", DefaultConfig())
	sample := &model.AnalyticsSample{Density: 0.1, Congestion: model.CongestionLow}
	metrics := []analytics.TrackMetric{{TrackID: 1, Speed: 1.0, Velocity: model.Flow{X: 1, Y: 0}}}
	alerts := g.Evaluate(sample, metrics, nil, time.Now())
	assert.Empty(t, alerts)
	assert.Equal(t, model.RiskNormal, sample.RiskLevel)
}

func TestEvaluateHighDensityReachesCritical(t *testing.T) {
	g := NewGenerator("cam1", DefaultConfig())
	sample := &model.AnalyticsSample{Density: 1.0, Congestion: model.CongestionHigh}
	metrics := []analytics.TrackMetric{
		{TrackID: 1, Speed: 5.0, Velocity: model.Flow{X: 1, Y: 0}},
		{TrackID: 2, Speed: 0.1, Velocity: model.Flow{X: -1, Y: 0}},
	}
	alerts := g.Evaluate(sample, metrics, nil, time.Now())
	assert.Equal(t, model.RiskCritical, sample.RiskLevel)
	assert.Len(t, alerts, 1, "level change from NORMAL to CRITICAL should emit one alert")
}

func TestEvaluateAlertResamplesAfterInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlertResampleInterval = 10 * time.Second
	g := NewGenerator("cam1", cfg)
	sample := &model.AnalyticsSample{Density: 1.0, Congestion: model.CongestionHigh}
	metrics := []analytics.TrackMetric{
		{TrackID: 1, Speed: 5.0, Velocity: model.Flow{X: 1, Y: 0}},
		{TrackID: 2, Speed: 0.1, Velocity: model.Flow{X: -1, Y: 0}},
	}
	now := time.Now()
	alerts := g.Evaluate(sample, metrics, nil, now)
	assert.Len(t, alerts, 1)

	alerts = g.Evaluate(sample, metrics, nil, now.Add(2*time.Second))
	assert.Empty(t, alerts, "should not resample before the interval elapses")

	alerts = g.Evaluate(sample, metrics, nil, now.Add(11*time.Second))
	assert.Len(t, alerts, 1, "should resample once the interval elapses")
}

func TestEvaluateSuddenMovementDetectsSpeedJump(t *testing.T) {
	g := NewGenerator("cam1", DefaultConfig())
	sample1 := &model.AnalyticsSample{Congestion: model.CongestionLow}
	m1 := []analytics.TrackMetric{{TrackID: 1, Speed: 0.2}}
	g.Evaluate(sample1, m1, nil, time.Now())

	jump := g.suddenMovement([]analytics.TrackMetric{{TrackID: 1, Speed: 5.0}})
	assert.Equal(t, 1.0, jump)
}

func TestZoneCapacityAlertEmittedOnce(t *testing.T) {
	g := NewGenerator("cam1", DefaultConfig())
	maxCap := 2
	zones := []model.Zone{{ID: "z1", MaxCapacity: &maxCap, CurrentOccupancy: 5}}
	sample := &model.AnalyticsSample{Congestion: model.CongestionLow}

	alerts := g.Evaluate(sample, nil, zones, time.Now())
	assert.Len(t, alerts, 1)
	assert.Equal(t, model.AlertZoneOvercapacty, alerts[0].Kind)

	alerts = g.Evaluate(sample, nil, zones, time.Now())
	assert.Empty(t, alerts, "should not repeat zone alert within resample interval")
}
