package mbt

import (
	"image"

	"github.com/golang/geo/r2"
)

// Feature is a tracked salient point: a unique identifier assigned at
// detection time and the current position in pixel coordinates.
type Feature struct {
	ID    int64
	Point r2.Point
}

// FeatureTracker is the point-feature tracking primitive the pose tracker is
// built on (KLT or equivalent). Implementations must keep feature ids stable
// across calls to Track for points that survive, and must never reuse the id
// of a dropped point within one detection session. The live set only shrinks
// between calls to InitTracking.
type FeatureTracker interface {
	// InitTracking detects salient points in img, restricted to pixels where
	// mask is non-zero (nil mask means the whole image). Each detected point
	// receives a fresh unique id.
	InitTracking(img *image.Gray, mask *image.Gray) error

	// Track advances previously detected points to their positions in img.
	// Points whose motion cannot be resolved are dropped from the live set.
	Track(img *image.Gray) error

	// NumFeatures returns the size of the live point set.
	NumFeatures() int

	// GetFeature returns the i-th live point, 0 <= i < NumFeatures().
	GetFeature(i int) Feature
}
