package mbt

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
)

// detectionMask accumulates the projected silhouettes of the visible faces,
// each grown by a fixed border, into a binary mask restricting feature
// detection. Transient, rebuilt on every full initialization.
type detectionMask struct {
	img *image.Gray
}

func newDetectionMask(bounds image.Rectangle) *detectionMask {
	return &detectionMask{img: image.NewGray(bounds)}
}

// addPolygon fills the polygon (pixel coordinates) grown by border pixels.
// The growth is a span dilation: every filled row span is widened by border
// and stamped onto the border rows above and below as well.
func (mask *detectionMask) addPolygon(polygon []r2.Point, border int) {
	if len(polygon) < 3 {
		return
	}
	bounds := mask.img.Bounds()
	region := polygonBounds(polygon, border).Intersect(bounds)
	if region.Empty() {
		return
	}

	for y := region.Min.Y; y < region.Max.Y; y++ {
		found := false
		spanMin, spanMax := 0, 0
		for sy := y - border; sy <= y+border; sy++ {
			lo, hi, ok := polygonRowSpan(polygon, float64(sy)+0.5)
			if !ok {
				continue
			}
			if !found {
				spanMin, spanMax = lo, hi
				found = true
			} else {
				spanMin = min(spanMin, lo)
				spanMax = max(spanMax, hi)
			}
		}
		if !found {
			continue
		}
		spanMin = max(spanMin-border, region.Min.X)
		spanMax = min(spanMax+border, region.Max.X-1)
		for x := spanMin; x <= spanMax; x++ {
			mask.img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
}

// polygonRowSpan returns the leftmost and rightmost pixel columns covered by
// the polygon on the scanline at height y, or ok=false when the scanline
// misses the polygon. Assumes a simple polygon.
func polygonRowSpan(polygon []r2.Point, y float64) (lo, hi int, ok bool) {
	minX := math.Inf(1)
	maxX := math.Inf(-1)
	n := len(polygon)
	j := n - 1
	for i := 0; i < n; i++ {
		p := polygon[i]
		q := polygon[j]
		if (p.Y > y) != (q.Y > y) {
			x := q.X + (y-q.Y)*(p.X-q.X)/(p.Y-q.Y)
			minX = math.Min(minX, x)
			maxX = math.Max(maxX, x)
		}
		j = i
	}
	if minX > maxX {
		return 0, 0, false
	}
	return int(math.Floor(minX)), int(math.Ceil(maxX)), true
}
