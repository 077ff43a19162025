package framecache

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/model"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{30, 30, 30, 255})
		}
	}
	return img
}

func TestAnnotateProducesDecodableJPEG(t *testing.T) {
	img := solid(64, 64)
	tracks := []model.Track{
		{TrackID: 1, State: model.TrackConfirmed, BBox: model.BBox{X: 5, Y: 5, W: 20, H: 20}},
	}
	zones := []model.Zone{{ID: "z1", Polygon: []model.Point{{X: 0, Y: 0}, {X: 63, Y: 0}, {X: 63, Y: 63}, {X: 0, Y: 63}}}}
	sample := model.AnalyticsSample{RiskLevel: model.RiskWarning, RiskScore: 0.5}

	out, err := Annotate(img, tracks, zones, sample, DefaultRenderOptions())
	assert.NoError(t, err)
	assert.NotEmpty(t, out)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
}

func TestAnnotateDoesNotMutateSourceImage(t *testing.T) {
	img := solid(32, 32)
	before := *img
	_, err := Annotate(img, nil, nil, model.AnalyticsSample{}, DefaultRenderOptions())
	assert.NoError(t, err)
	assert.Equal(t, before.Bounds(), img.Bounds())
}

func TestAnnotateHeatmapTintsFrame(t *testing.T) {
	img := solid(16, 16)
	sample := model.AnalyticsSample{Density: 1.0}

	out, err := Annotate(img, nil, nil, sample, RenderOptions{ShowHeatmap: true})
	assert.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
	r, g, b, _ := decoded.At(8, 8).RGBA()
	assert.Greater(t, r, g, "a density of 1.0 should wash the frame toward red")
	assert.Greater(t, r, b)
}

func TestAnnotateFlowArrowForMovingTrack(t *testing.T) {
	img := solid(64, 64)
	tracks := []model.Track{
		{
			TrackID:  1,
			State:    model.TrackConfirmed,
			BBox:     model.BBox{X: 30, Y: 30, W: 10, H: 10},
			PrevBBox: model.BBox{X: 10, Y: 30, W: 10, H: 10},
		},
	}

	out, err := Annotate(img, tracks, nil, model.AnalyticsSample{}, RenderOptions{ShowFlow: true})
	assert.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestAnnotateMetricsHUDAndTrackIDsDoNotPanicOnSmallFrame(t *testing.T) {
	img := solid(8, 8)
	tracks := []model.Track{{TrackID: 42, State: model.TrackTentative, BBox: model.BBox{X: 0, Y: 0, W: 4, H: 4}}}
	sample := model.AnalyticsSample{PeopleCount: 3, Density: 0.4, AvgSpeed: 1.2, Congestion: model.CongestionMedium}

	out, err := Annotate(img, tracks, nil, sample, RenderOptions{ShowBoxes: true, ShowTrackIDs: true, ShowMetrics: true})
	assert.NoError(t, err)
	assert.NotEmpty(t, out)
}
