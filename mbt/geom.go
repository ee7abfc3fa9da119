package mbt

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// NewPoint2 creates a 2D image point (pixel or normalized coordinates
// depending on context).
func NewPoint2(x, y float64) r2.Point {
	return r2.Point{X: x, Y: y}
}

// pointInPolygon reports whether pt lies inside the polygon given by its
// ordered vertices, using the ray-crossing rule. Points exactly on an edge
// may fall on either side.
func pointInPolygon(pt r2.Point, polygon []r2.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi := polygon[i]
		pj := polygon[j]
		if (pi.Y > pt.Y) != (pj.Y > pt.Y) {
			xCross := pj.X + (pt.Y-pj.Y)*(pi.X-pj.X)/(pi.Y-pj.Y)
			if pt.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// polygonBounds returns the integer bounding rectangle of a polygon in pixel
// coordinates, grown by border pixels on every side.
func polygonBounds(polygon []r2.Point, border int) image.Rectangle {
	if len(polygon) == 0 {
		return image.Rectangle{}
	}
	minX, minY := polygon[0].X, polygon[0].Y
	maxX, maxY := minX, minY
	for _, p := range polygon[1:] {
		minX = minFloat64(minX, p.X)
		minY = minFloat64(minY, p.Y)
		maxX = maxFloat64(maxX, p.X)
		maxY = maxFloat64(maxY, p.Y)
	}
	return image.Rect(
		int(math.Floor(minX))-border,
		int(math.Floor(minY))-border,
		int(math.Ceil(maxX))+border+1,
		int(math.Ceil(maxY))+border+1,
	)
}

// roiInsideImage reports whether every vertex of the projected polygon lies
// within the image bounds.
func roiInsideImage(bounds image.Rectangle, polygon []r2.Point) bool {
	if len(polygon) == 0 {
		return false
	}
	for _, p := range polygon {
		x := int(math.Round(p.X))
		y := int(math.Round(p.Y))
		if !image.Pt(x, y).In(bounds) {
			return false
		}
	}
	return true
}
