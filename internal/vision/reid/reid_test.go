package reid

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/model"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestL2NormalizeUnitNorm(t *testing.T) {
	v := []float32{3, 4}
	out := L2Normalize(v)
	var sumSq float64
	for _, x := range out {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-6)
}

func TestL2NormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, L2Normalize(v))
}

func TestUpdateEMAConvergesTowardNext(t *testing.T) {
	prev := L2Normalize([]float32{1, 0})
	next := L2Normalize([]float32{0, 1})
	out := UpdateEMA(prev, next, 0.3)
	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
	assert.Greater(t, out[1], prev[1], "should move toward next")
}

func TestSimilarityIdentical(t *testing.T) {
	v := L2Normalize([]float32{1, 2, 3})
	assert.InDelta(t, 1.0, Similarity(v, v), 1e-6)
}

func TestSimilarityOrthogonalClippedToZero(t *testing.T) {
	a := L2Normalize([]float32{1, 0})
	b := L2Normalize([]float32{0, 1})
	assert.Equal(t, 0.0, Similarity(a, b))
}

func TestSimilarityOppositeClippedToZero(t *testing.T) {
	a := L2Normalize([]float32{1, 0})
	b := L2Normalize([]float32{-1, 0})
	assert.Equal(t, 0.0, Similarity(a, b))
}

func TestExtractProducesUnitVector(t *testing.T) {
	img := solidImage(64, 128, color.RGBA{R: 200, G: 50, B: 50, A: 255})
	ex := NewStubExtractor()
	box := model.BBox{X: 0, Y: 0, W: 64, H: 128}
	vec, err := ex.Extract(context.Background(), img, box)
	assert.NoError(t, err)
	assert.Len(t, vec, EmbeddingDim)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSq, 0.05)
}
