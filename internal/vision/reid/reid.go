// Package reid implements the §4.4 appearance re-identification stage: a
// fixed-dimension, L2-normalized embedding per track, updated by
// exponential moving average, and cosine similarity for cross-camera
// matching.
package reid

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/technosupport/crowdwatch/internal/apperr"
	"github.com/technosupport/crowdwatch/internal/model"
)

// EmbeddingDim is E from §4.4.
const EmbeddingDim = 512

const histogramBins = 256

// Extractor produces an appearance embedding for one track's box crop.
type Extractor interface {
	Extract(ctx context.Context, img image.Image, box model.BBox) ([]float32, error)
}

// Config holds the re-id stage's tunables.
type Config struct {
	Alpha float64 // EMA weight for new observations, default 0.3
}

func DefaultConfig() Config {
	return Config{Alpha: 0.3}
}

// StubExtractor fuses a lightweight deterministic appearance descriptor
// (coarse spatial luminance/color moments standing in for an external
// encoder, per spec.md's "black-box predictor" framing) with a normalized
// HSV histogram, L2-normalizing the concatenation into a 512-d vector —
// the "Open Questions" resolution in SPEC_FULL.md.
type StubExtractor struct{}

func NewStubExtractor() *StubExtractor { return &StubExtractor{} }

func (s *StubExtractor) Extract(_ context.Context, img image.Image, box model.BBox) ([]float32, error) {
	if img == nil {
		return nil, apperr.Corruptf("nil image")
	}
	crop := cropBounds(img.Bounds(), box)
	if crop.Dx() <= 0 || crop.Dy() <= 0 {
		return nil, apperr.Corruptf("empty crop for box %+v", box)
	}

	appearance := appearanceDescriptor(img, crop, EmbeddingDim/2)
	histogram := hsvHistogram(img, crop, EmbeddingDim/2)

	vec := make([]float32, 0, EmbeddingDim)
	vec = append(vec, appearance...)
	vec = append(vec, histogram...)
	return L2Normalize(vec), nil
}

func cropBounds(frameBounds image.Rectangle, box model.BBox) image.Rectangle {
	x0 := frameBounds.Min.X + int(box.X)
	y0 := frameBounds.Min.Y + int(box.Y)
	x1 := x0 + int(box.W)
	y1 := y0 + int(box.H)
	r := image.Rect(x0, y0, x1, y1).Intersect(frameBounds)
	return r
}

// appearanceDescriptor bins the crop into a dims-cell grid and records mean
// luminance per cell, a cheap stand-in for a learned appearance embedding.
func appearanceDescriptor(img image.Image, crop image.Rectangle, dims int) []float32 {
	out := make([]float32, dims)
	if dims == 0 {
		return out
	}
	cells := int(math.Sqrt(float64(dims)))
	if cells == 0 {
		cells = 1
	}
	cw := max(1, crop.Dx()/cells)
	ch := max(1, crop.Dy()/cells)

	idx := 0
	for cy := crop.Min.Y; cy < crop.Max.Y && idx < dims; cy += ch {
		for cx := crop.Min.X; cx < crop.Max.X && idx < dims; cx += cw {
			sum, n := 0.0, 0
			for y := cy; y < min(cy+ch, crop.Max.Y); y++ {
				for x := cx; x < min(cx+cw, crop.Max.X); x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
					n++
				}
			}
			if n > 0 {
				out[idx] = float32(sum / float64(n) / 255.0)
			}
			idx++
		}
	}
	return out
}

// hsvHistogram builds a normalized hue histogram over the crop folded down
// to bins entries.
func hsvHistogram(img image.Image, crop image.Rectangle, bins int) []float32 {
	raw := make([]float64, histogramBins)
	total := 0.0
	for y := crop.Min.Y; y < crop.Max.Y; y++ {
		for x := crop.Min.X; x < crop.Max.X; x++ {
			h, _, _ := rgbToHSV(img.At(x, y))
			bin := int(h / 360.0 * float64(histogramBins))
			if bin >= histogramBins {
				bin = histogramBins - 1
			}
			raw[bin]++
			total++
		}
	}
	out := make([]float32, bins)
	if total == 0 || bins == 0 {
		return out
	}
	fold := histogramBins / bins
	if fold == 0 {
		fold = 1
	}
	for i := 0; i < histogramBins; i++ {
		out[i/fold%bins] += float32(raw[i] / total)
	}
	return out
}

func rgbToHSV(c color.Color) (h, s, v float64) {
	r, g, b, _ := c.RGBA()
	rf, gf, bf := float64(r>>8)/255, float64(g>>8)/255, float64(b>>8)/255
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	v = maxC
	d := maxC - minC
	if maxC == 0 {
		s = 0
	} else {
		s = d / maxC
	}
	if d == 0 {
		h = 0
	} else {
		switch maxC {
		case rf:
			h = 60 * math.Mod((gf-bf)/d, 6)
		case gf:
			h = 60 * ((bf-rf)/d + 2)
		default:
			h = 60 * ((rf-gf)/d + 4)
		}
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// L2Normalize scales vec to unit length. A zero vector is returned
// unchanged (cosine similarity against it is defined as 0 by Similarity).
func L2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// UpdateEMA folds a new embedding into prev with weight alpha, then
// re-normalizes: e <- (1-alpha)*prev + alpha*next, per §4.4.
func UpdateEMA(prev, next []float32, alpha float64) []float32 {
	if len(prev) == 0 {
		return L2Normalize(next)
	}
	if len(next) != len(prev) {
		return L2Normalize(next)
	}
	out := make([]float32, len(prev))
	for i := range prev {
		out[i] = float32((1-alpha)*float64(prev[i]) + alpha*float64(next[i]))
	}
	return L2Normalize(out)
}

// Similarity returns cosine similarity clipped to [0,1], per §4.4.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
