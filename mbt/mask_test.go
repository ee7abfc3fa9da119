package mbt

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
)

func maskAt(mask *detectionMask, x, y int) bool {
	return mask.img.GrayAt(x, y).Y != 0
}

func TestAddPolygonFillsInteriorWithBorder(t *testing.T) {
	mask := newDetectionMask(image.Rect(0, 0, 640, 480))
	polygon := []r2.Point{
		{X: 100, Y: 100},
		{X: 200, Y: 100},
		{X: 200, Y: 200},
		{X: 100, Y: 200},
	}
	mask.addPolygon(polygon, 10)

	cases := []struct {
		x, y int
		want bool
	}{
		{150, 150, true}, // center
		{101, 101, true}, // inside corner
		{95, 150, true},  // within the border growth
		{150, 95, true},
		{205, 205, true},
		{85, 150, false}, // past the border
		{150, 85, false},
		{215, 215, false},
		{0, 0, false},
		{500, 400, false},
	}
	for _, c := range cases {
		if got := maskAt(mask, c.x, c.y); got != c.want {
			t.Errorf("wrong mask value at (%d,%d): %v, correct answer: %v", c.x, c.y, got, c.want)
		}
	}
}

func TestAddPolygonClipsToImage(t *testing.T) {
	mask := newDetectionMask(image.Rect(0, 0, 100, 100))
	polygon := []r2.Point{
		{X: -50, Y: -50},
		{X: 50, Y: -50},
		{X: 50, Y: 50},
		{X: -50, Y: 50},
	}
	mask.addPolygon(polygon, 5)

	if !maskAt(mask, 0, 0) || !maskAt(mask, 40, 40) {
		t.Error("clipped polygon must still cover the in-image part")
	}
	if maskAt(mask, 60, 60) {
		t.Error("mask set outside the grown polygon")
	}
}

func TestAddPolygonIgnoresDegenerateInput(t *testing.T) {
	mask := newDetectionMask(image.Rect(0, 0, 100, 100))
	mask.addPolygon([]r2.Point{{X: 10, Y: 10}, {X: 20, Y: 20}}, 5)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if maskAt(mask, x, y) {
				t.Fatalf("mask set at (%d,%d) for a degenerate polygon", x, y)
			}
		}
	}
}
