package framecache

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/technosupport/crowdwatch/internal/model"
)

// RenderOptions toggles the overlays the annotator draws, per §4.7.
type RenderOptions struct {
	ShowBoxes    bool
	ShowTrackIDs bool
	ShowZones    bool
	ShowFlow     bool
	ShowHeatmap  bool
	ShowMetrics  bool
	ShowRiskBar  bool
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{ShowBoxes: true, ShowTrackIDs: true, ShowZones: true, ShowMetrics: true, ShowRiskBar: true}
}

var (
	colorConfirmed = color.RGBA{0, 200, 0, 255}
	colorTentative = color.RGBA{160, 160, 160, 255}
	colorZone      = color.RGBA{220, 0, 220, 255}
	colorRiskOK    = color.RGBA{0, 200, 0, 255}
	colorRiskWarn  = color.RGBA{230, 150, 0, 255}
	colorRiskCrit  = color.RGBA{220, 0, 0, 255}
	colorFlow      = color.RGBA{0, 180, 255, 255}
	colorHUDText   = color.RGBA{255, 255, 255, 255}
)

// Annotate is a pure function from a decoded frame plus the current
// pipeline state to an encoded JPEG; it never mutates its inputs. img must
// match frame's declared dimensions.
func Annotate(img image.Image, tracks []model.Track, zones []model.Zone, sample model.AnalyticsSample, opts RenderOptions) ([]byte, error) {
	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	if opts.ShowHeatmap {
		drawDensityWash(canvas, sample.Density)
	}
	if opts.ShowZones {
		for _, z := range zones {
			drawPolygon(canvas, z.Polygon, colorZone)
		}
	}
	if opts.ShowBoxes {
		for _, tr := range tracks {
			c := colorTentative
			if tr.State == model.TrackConfirmed {
				c = colorConfirmed
			}
			drawRect(canvas, tr.BBox, c)
			if opts.ShowTrackIDs {
				drawLabel(canvas, int(tr.BBox.X), int(tr.BBox.Y), fmt.Sprintf("#%d", tr.TrackID), c)
			}
		}
	}
	if opts.ShowFlow {
		for _, tr := range tracks {
			drawFlowArrow(canvas, tr, colorFlow)
		}
	}
	if opts.ShowRiskBar {
		drawRiskBar(canvas, sample.RiskLevel, sample.RiskScore)
	}
	if opts.ShowMetrics {
		drawMetricsHUD(canvas, sample)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawRect(img *image.RGBA, box model.BBox, c color.Color) {
	x0, y0 := int(box.X), int(box.Y)
	x1, y1 := int(box.X+box.W), int(box.Y+box.H)
	hLine(img, x0, x1, y0, c)
	hLine(img, x0, x1, y1, c)
	vLine(img, y0, y1, x0, c)
	vLine(img, y0, y1, x1, c)
}

func drawPolygon(img *image.RGBA, pts []model.Point, c color.Color) {
	n := len(pts)
	if n < 2 {
		return
	}
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		line(img, a.X, a.Y, b.X, b.Y, c)
	}
}

func drawRiskBar(img *image.RGBA, level model.RiskLevel, score float64) {
	b := img.Bounds()
	barW := int(float64(b.Dx()) * clip01(score))
	c := colorRiskOK
	switch level {
	case model.RiskWarning:
		c = colorRiskWarn
	case model.RiskCritical:
		c = colorRiskCrit
	}
	for y := b.Min.Y; y < b.Min.Y+6 && y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Min.X+barW && x < b.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawDensityWash tints the whole frame by sample.Density on a
// blue (empty) to red (packed) gradient, since the pipeline keeps no
// per-pixel occupancy grid to render a true spatial heatmap from.
func drawDensityWash(img *image.RGBA, density float64) {
	d := clip01(density)
	wash := color.NRGBA{
		R: uint8(255 * d),
		G: 0,
		B: uint8(255 * (1 - d)),
		A: 70,
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: wash}, image.Point{}, draw.Over)
}

// drawFlowArrow draws an arrow from a track's previous box center toward
// its current one, scaled up so a frame-to-frame nudge is still visible.
func drawFlowArrow(img *image.RGBA, tr model.Track, c color.Color) {
	px, py := tr.PrevBBox.BottomCenter()
	cx, cy := tr.BBox.BottomCenter()
	dx, dy := cx-px, cy-py
	if dx == 0 && dy == 0 {
		return
	}
	const scale = 4.0
	x0, y0 := int(cx), int(cy)
	x1, y1 := int(cx+dx*scale), int(cy+dy*scale)
	line(img, x0, y0, x1, y1, c)
	drawArrowhead(img, x0, y0, x1, y1, c)
}

func drawArrowhead(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	angle := math.Atan2(float64(y1-y0), float64(x1-x0))
	const length, spread = 6.0, 0.5
	left := angle + math.Pi - spread
	right := angle + math.Pi + spread
	line(img, x1, y1, x1+int(length*math.Cos(left)), y1+int(length*math.Sin(left)), c)
	line(img, x1, y1, x1+int(length*math.Cos(right)), y1+int(length*math.Sin(right)), c)
}

// drawMetricsHUD prints the current sample's headline numbers in the
// top-left corner.
func drawMetricsHUD(img *image.RGBA, sample model.AnalyticsSample) {
	lines := []string{
		fmt.Sprintf("people: %d  density: %.2f", sample.PeopleCount, sample.Density),
		fmt.Sprintf("speed: %.2f  congestion: %s", sample.AvgSpeed, sample.Congestion),
	}
	for i, l := range lines {
		drawLabel(img, 4, 20+i*16, l, colorHUDText)
	}
}

// drawLabel draws text with an opaque background so it stays legible over
// any frame content.
func drawLabel(img *image.RGBA, x, y int, label string, c color.Color) {
	if y < 10 {
		y = 10
	}
	if x < 0 {
		x = 0
	}
	bounds := img.Bounds()
	bg := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, bg)
			}
		}
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}

func hLine(img *image.RGBA, x0, x1, y int, c color.Color) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func vLine(img *image.RGBA, y0, y1, x int, c color.Color) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

// line draws a Bresenham line between two integer points.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
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
