package mbt

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Homography is a 3x3 planar projective transform stored row-major. It maps
// normalized coordinates on a known 3D plane between two camera views.
type Homography [9]float64

// Apply transfers a point in normalized coordinates through the homography.
// Returns an error when the point maps to the plane at infinity.
func (h Homography) Apply(p r2.Point) (r2.Point, error) {
	denom := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(denom) < 1e-12 {
		return r2.Point{}, errors.New("homography maps point to infinity")
	}
	return r2.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / denom,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / denom,
	}, nil
}

// planeHomography builds the homography transferring normalized coordinates
// from the reference view to the current view for the plane with unit normal
// n0 and distance d0 (n0·X = d0, both in the reference camera frame), given
// the rigid transform t from the reference camera frame to the current one:
//
//	H = R + t·n0ᵀ/d0
func planeHomography(transform Pose, n0 r3.Vector, d0 float64) (Homography, error) {
	if math.Abs(d0) < 1e-12 {
		return Homography{}, errors.New("plane passes through the optical center")
	}
	r := transform.Rotation
	t := transform.Translation.Mul(1.0 / d0)
	return Homography{
		r[0] + t.X*n0.X, r[1] + t.X*n0.Y, r[2] + t.X*n0.Z,
		r[3] + t.Y*n0.X, r[4] + t.Y*n0.Y, r[5] + t.Y*n0.Z,
		r[6] + t.Z*n0.X, r[7] + t.Z*n0.Y, r[8] + t.Z*n0.Z,
	}, nil
}
