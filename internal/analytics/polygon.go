package analytics

import "github.com/technosupport/crowdwatch/internal/model"

// PointInPolygon reports whether (x,y) lies inside the simple polygon
// described by pts, using the standard ray-casting test. Points on the
// boundary are treated as inside.
func PointInPolygon(x, y float64, pts []model.Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := float64(pts[i].X), float64(pts[i].Y)
		xj, yj := float64(pts[j].X), float64(pts[j].Y)
		if onSegment(x, y, xi, yi, xj, yj) {
			return true
		}
		if (yi > y) != (yj > y) {
			xIntersect := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < xIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func onSegment(x, y, x1, y1, x2, y2 float64) bool {
	cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
	if cross != 0 {
		return false
	}
	if x < min(x1, x2) || x > max(x1, x2) {
		return false
	}
	if y < min(y1, y2) || y > max(y1, y2) {
		return false
	}
	return true
}
