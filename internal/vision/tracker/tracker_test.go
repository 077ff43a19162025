package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/model"
)

func det(x, y, w, h, conf float64) model.Detection {
	return model.Detection{BBox: model.BBox{X: x, Y: y, W: w, H: h}, Confidence: conf, Class: "person"}
}

func TestUpdateConfirmsAfterMinHits(t *testing.T) {
	tr := New("cam1", Config{IoUThreshold: 0.3, MinHits: 3, MaxAge: 30})
	now := time.Now()

	out := tr.Update([]model.Detection{det(0, 0, 20, 40, 0.9)}, now)
	assert.Empty(t, out, "tentative track should not be emitted yet")

	out = tr.Update([]model.Detection{det(1, 0, 20, 40, 0.9)}, now.Add(33*time.Millisecond))
	assert.Empty(t, out)

	out = tr.Update([]model.Detection{det(2, 0, 20, 40, 0.9)}, now.Add(66*time.Millisecond))
	assert.Len(t, out, 1)
	assert.Equal(t, model.TrackConfirmed, out[0].State)
	assert.Equal(t, 3, out[0].TotalFrames)
}

func TestUpdateAssignsStrictlyIncreasingTrackIDs(t *testing.T) {
	tr := New("cam1", DefaultConfig())
	now := time.Now()
	tr.Update([]model.Detection{det(0, 0, 10, 10, 0.9)}, now)
	tr.Update([]model.Detection{det(500, 500, 10, 10, 0.9)}, now)
	assert.Equal(t, 2, tr.ActiveCount())
	assert.Contains(t, tr.active, uint64(1))
	assert.Contains(t, tr.active, uint64(2))
}

func TestUpdateTerminatesAfterMaxAge(t *testing.T) {
	tr := New("cam1", Config{IoUThreshold: 0.3, MinHits: 1, MaxAge: 2})
	now := time.Now()
	out := tr.Update([]model.Detection{det(0, 0, 10, 10, 0.9)}, now)
	assert.Len(t, out, 1)

	tr.Update(nil, now.Add(33*time.Millisecond))
	assert.Equal(t, 1, tr.ActiveCount(), "should still be lost, not yet terminated")

	tr.Update(nil, now.Add(66*time.Millisecond))
	assert.Equal(t, 0, tr.ActiveCount(), "should be terminated and removed")
}

func TestUpdateMatchesByIoU(t *testing.T) {
	tr := New("cam1", Config{IoUThreshold: 0.3, MinHits: 1, MaxAge: 30})
	now := time.Now()
	out := tr.Update([]model.Detection{det(0, 0, 20, 20, 0.9)}, now)
	assert.Len(t, out, 1)
	id := out[0].TrackID

	out = tr.Update([]model.Detection{det(3, 3, 20, 20, 0.9)}, now.Add(33*time.Millisecond))
	assert.Len(t, out, 1)
	assert.Equal(t, id, out[0].TrackID, "overlapping detection should match the same track")
}
