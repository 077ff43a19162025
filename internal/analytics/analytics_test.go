package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/model"
)

func confirmedTrack(id uint64, cx, cy, pcx, pcy float64, ts, prevTS time.Time) model.Track {
	return model.Track{
		TrackID: id,
		State:   model.TrackConfirmed,
		BBox:    model.BBox{X: cx - 5, Y: cy - 5, W: 10, H: 10},
		PrevBBox: model.BBox{X: pcx - 5, Y: pcy - 5, W: 10, H: 10},
		LastSeen: ts,
		PrevTS:   prevTS,
	}
}

func TestComputeZeroTracks(t *testing.T) {
	sample, metrics := Compute("cam1", nil, time.Now(), DefaultConfig())
	assert.Equal(t, 0, sample.PeopleCount)
	assert.Equal(t, 0.0, sample.Density)
	assert.Equal(t, model.Flow{}, sample.Flow)
	assert.Equal(t, model.CongestionLow, sample.Congestion)
	assert.Nil(t, metrics)
}

func TestComputeSingleTrackNoPrev(t *testing.T) {
	now := time.Now()
	tr := model.Track{TrackID: 1, State: model.TrackConfirmed, BBox: model.BBox{X: 0, Y: 0, W: 10, H: 10}, LastSeen: now}
	sample, metrics := Compute("cam1", []model.Track{tr}, now, DefaultConfig())
	assert.Equal(t, 1, sample.PeopleCount)
	assert.Equal(t, 0.0, sample.Density)
	assert.Equal(t, 0.0, sample.AvgSpeed)
	assert.Len(t, metrics, 1)
	assert.Equal(t, 0.0, metrics[0].Speed)
}

func TestComputeFlowDirectionRightward(t *testing.T) {
	now := time.Now()
	prev := now.Add(-100 * time.Millisecond)
	tr := confirmedTrack(1, 110, 50, 100, 50, now, prev)
	sample, metrics := Compute("cam1", []model.Track{tr}, now, DefaultConfig())
	assert.Greater(t, sample.Flow.X, 0.8)
	assert.Greater(t, metrics[0].Speed, 0.0)
}

func TestComputeDensityIncreasesWithProximity(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	far := []model.Track{
		{TrackID: 1, State: model.TrackConfirmed, BBox: model.BBox{X: 0, Y: 0, W: 10, H: 10}, LastSeen: now},
		{TrackID: 2, State: model.TrackConfirmed, BBox: model.BBox{X: 2000, Y: 2000, W: 10, H: 10}, LastSeen: now},
	}
	closeTracks := []model.Track{
		{TrackID: 1, State: model.TrackConfirmed, BBox: model.BBox{X: 0, Y: 0, W: 10, H: 10}, LastSeen: now},
		{TrackID: 2, State: model.TrackConfirmed, BBox: model.BBox{X: 5, Y: 5, W: 10, H: 10}, LastSeen: now},
	}

	farSample, _ := Compute("cam1", far, now, cfg)
	closeSample, _ := Compute("cam1", closeTracks, now, cfg)
	assert.Greater(t, closeSample.Density, farSample.Density)
}

func TestComputeIgnoresNonConfirmedTracks(t *testing.T) {
	now := time.Now()
	tracks := []model.Track{
		{TrackID: 1, State: model.TrackTentative, BBox: model.BBox{X: 0, Y: 0, W: 10, H: 10}, LastSeen: now},
	}
	sample, _ := Compute("cam1", tracks, now, DefaultConfig())
	assert.Equal(t, 0, sample.PeopleCount)
}

func TestCongestionThresholds(t *testing.T) {
	assert.Equal(t, model.CongestionLow, congestionFromDensity(0.1))
	assert.Equal(t, model.CongestionMedium, congestionFromDensity(0.5))
	assert.Equal(t, model.CongestionHigh, congestionFromDensity(0.9))
}
