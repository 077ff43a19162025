// Package detector implements the §4.2 detector-stage contract. The
// detector is treated as an external, stateless predictor per spec.md's
// scope note — StubDetector is a deterministic, dependency-free stand-in
// that a real model-backed implementation (gRPC or in-process) can replace
// without touching callers, matching the donor's capability-interface
// style (cameras.Service injecting pluggable collaborators).
package detector

import (
	"context"
	"image"
	"sort"

	"github.com/technosupport/crowdwatch/internal/apperr"
	"github.com/technosupport/crowdwatch/internal/model"
)

// Detector runs person detection over one decoded frame.
type Detector interface {
	// Detect returns person detections with confidence >= the
	// implementation's configured threshold. A detector never returns an
	// error for a frame it merely found nothing in — only for a frame it
	// could not process at all.
	Detect(ctx context.Context, img image.Image) ([]model.Detection, error)
}

// Config holds the detector stage's tunables (§4.2 defaults).
type Config struct {
	ConfThreshold float64
	NMSThreshold  float64
}

func DefaultConfig() Config {
	return Config{ConfThreshold: 0.5, NMSThreshold: 0.4}
}

// NMS performs greedy non-maximum suppression: detections are sorted by
// descending confidence and a candidate is dropped once its IoU against any
// already-kept detection exceeds iouThreshold.
func NMS(dets []model.Detection, iouThreshold float64) []model.Detection {
	if len(dets) == 0 {
		return dets
	}
	sorted := make([]model.Detection, len(dets))
	copy(sorted, dets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	kept := make([]model.Detection, 0, len(sorted))
	for _, cand := range sorted {
		suppressed := false
		for _, k := range kept {
			if cand.BBox.IoU(k.BBox) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}
	return kept
}

// FilterPersons keeps only person-class detections at or above confThreshold,
// per §4.2.
func FilterPersons(dets []model.Detection, confThreshold float64) []model.Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Class == "person" && d.Confidence >= confThreshold {
			out = append(out, d)
		}
	}
	return out
}

// Run applies FilterPersons then NMS, the pipeline the stage performs on
// every surviving frame. Detector errors never propagate upward: a failed
// Detect call yields an empty detection list, matching §4.2.
func Run(ctx context.Context, d Detector, img image.Image, cfg Config) []model.Detection {
	dets, err := d.Detect(ctx, img)
	if err != nil {
		return nil
	}
	dets = FilterPersons(dets, cfg.ConfThreshold)
	return NMS(dets, cfg.NMSThreshold)
}

// StubDetector is a deterministic, model-free predictor used where no
// external model handle is configured. It performs grid-cell luminance
// variance analysis: cells whose variance exceeds a fixed threshold are
// reported as low-confidence person boxes. It exists so the pipeline is
// exercisable without a GPU model handle; production deployments inject a
// model-backed Detector instead.
type StubDetector struct {
	CellSize int
}

func NewStubDetector() *StubDetector {
	return &StubDetector{CellSize: 64}
}

func (s *StubDetector) Detect(_ context.Context, img image.Image) ([]model.Detection, error) {
	if img == nil {
		return nil, apperr.Corruptf("nil image")
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, apperr.Corruptf("zero-sized image")
	}
	cell := s.CellSize
	if cell <= 0 {
		cell = 64
	}

	var dets []model.Detection
	for y := bounds.Min.Y; y < bounds.Max.Y; y += cell {
		for x := bounds.Min.X; x < bounds.Max.X; x += cell {
			cw := min(cell, bounds.Max.X-x)
			ch := min(cell, bounds.Max.Y-y)
			mean, variance := luminanceStats(img, x, y, cw, ch)
			if variance < 400 || mean < 10 {
				continue
			}
			conf := variance / (variance + 2000)
			dets = append(dets, model.Detection{
				BBox:       model.BBox{X: float64(x), Y: float64(y), W: float64(cw), H: float64(ch)},
				Confidence: conf,
				Class:      "person",
			})
		}
	}
	return dets, nil
}

func luminanceStats(img image.Image, x, y, w, h int) (mean, variance float64) {
	n := 0
	sum := 0.0
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			r, g, b, _ := img.At(i, j).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			sum += lum
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	var sqDiff float64
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			r, g, b, _ := img.At(i, j).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			d := lum - mean
			sqDiff += d * d
		}
	}
	variance = sqDiff / float64(n)
	return mean, variance
}
