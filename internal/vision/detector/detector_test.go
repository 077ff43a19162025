package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/model"
)

func box(x, y, w, h, conf float64) model.Detection {
	return model.Detection{BBox: model.BBox{X: x, Y: y, W: w, H: h}, Confidence: conf, Class: "person"}
}

func TestFilterPersons(t *testing.T) {
	dets := []model.Detection{
		box(0, 0, 10, 10, 0.9),
		{BBox: model.BBox{X: 0, Y: 0, W: 10, H: 10}, Confidence: 0.9, Class: "car"},
		box(0, 0, 10, 10, 0.2),
	}
	out := FilterPersons(dets, 0.5)
	assert.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Confidence)
}

func TestNMSSuppressesOverlapping(t *testing.T) {
	dets := []model.Detection{
		box(0, 0, 100, 100, 0.95),
		box(5, 5, 100, 100, 0.80), // heavily overlapping, lower confidence
		box(500, 500, 50, 50, 0.70), // disjoint, kept
	}
	out := NMS(dets, 0.4)
	assert.Len(t, out, 2)
	assert.Equal(t, 0.95, out[0].Confidence)
	assert.Equal(t, 0.70, out[1].Confidence)
}

func TestNMSEmpty(t *testing.T) {
	assert.Empty(t, NMS(nil, 0.4))
}

func TestIoU(t *testing.T) {
	a := model.BBox{X: 0, Y: 0, W: 10, H: 10}
	b := model.BBox{X: 5, Y: 5, W: 10, H: 10}
	iou := a.IoU(b)
	assert.InDelta(t, 25.0/175.0, iou, 1e-9)

	c := model.BBox{X: 100, Y: 100, W: 10, H: 10}
	assert.Zero(t, a.IoU(c))
}
