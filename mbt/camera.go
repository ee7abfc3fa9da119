package mbt

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// CameraParameters holds the pinhole intrinsics shared read-only by all
// faces: focal lengths in pixels and principal point.
type CameraParameters struct {
	Px float64 `json:"px"`
	Py float64 `json:"py"`
	U0 float64 `json:"u0"`
	V0 float64 `json:"v0"`
}

// NewCameraParameters creates pinhole intrinsics from focal lengths (px, py)
// and principal point (u0, v0), all in pixels.
func NewCameraParameters(px, py, u0, v0 float64) (CameraParameters, error) {
	if px <= 0 || py <= 0 {
		return CameraParameters{}, errors.Errorf("non-positive focal length (px=%v, py=%v)", px, py)
	}
	return CameraParameters{Px: px, Py: py, U0: u0, V0: v0}, nil
}

// MeterToPixel converts a point from normalized coordinates (meters at Z=1)
// to pixel coordinates.
func (cam CameraParameters) MeterToPixel(p r2.Point) r2.Point {
	return r2.Point{
		X: cam.U0 + p.X*cam.Px,
		Y: cam.V0 + p.Y*cam.Py,
	}
}

// PixelToMeter converts a point from pixel coordinates to normalized
// coordinates (meters at Z=1).
func (cam CameraParameters) PixelToMeter(p r2.Point) r2.Point {
	return r2.Point{
		X: (p.X - cam.U0) / cam.Px,
		Y: (p.Y - cam.V0) / cam.Py,
	}
}

// valid reports whether the intrinsics have been initialized.
func (cam CameraParameters) valid() bool {
	return cam.Px > 0 && cam.Py > 0
}
