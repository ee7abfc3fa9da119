package mbt

import (
	"github.com/golang/geo/r3"
)

// RotationMatrix is a 3x3 rotation matrix stored row-major.
type RotationMatrix [9]float64

// IdentityRotation returns the identity rotation.
func IdentityRotation() RotationMatrix {
	return RotationMatrix{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// At returns the element at row i, column j.
func (r RotationMatrix) At(i, j int) float64 {
	return r[3*i+j]
}

// Mul composes two rotations (r * s).
func (r RotationMatrix) Mul(s RotationMatrix) RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += r[3*i+k] * s[3*k+j]
			}
			out[3*i+j] = sum
		}
	}
	return out
}

// Transpose returns the transposed (inverse) rotation.
func (r RotationMatrix) Transpose() RotationMatrix {
	return RotationMatrix{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}
}

// Apply rotates a vector.
func (r RotationMatrix) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// Pose is a rigid transform mapping points from one frame to another
// (rotation followed by translation). The zero value is not valid; use
// IdentityPose or NewPose.
type Pose struct {
	Rotation    RotationMatrix
	Translation r3.Vector
}

// IdentityPose returns the identity transform.
func IdentityPose() Pose {
	return Pose{Rotation: IdentityRotation()}
}

// NewPose creates a transform from a rotation matrix and a translation.
func NewPose(rotation RotationMatrix, translation r3.Vector) Pose {
	return Pose{Rotation: rotation, Translation: translation}
}

// Compose returns p ∘ q: the transform applying q first, then p.
func (p Pose) Compose(q Pose) Pose {
	return Pose{
		Rotation:    p.Rotation.Mul(q.Rotation),
		Translation: p.Rotation.Apply(q.Translation).Add(p.Translation),
	}
}

// Inverse returns the inverse transform.
func (p Pose) Inverse() Pose {
	rt := p.Rotation.Transpose()
	return Pose{
		Rotation:    rt,
		Translation: rt.Apply(p.Translation).Mul(-1),
	}
}

// Transform applies the rigid transform to a point.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return p.Rotation.Apply(pt).Add(p.Translation)
}

// Rotate applies only the rotational part to a vector (directions, normals).
func (p Pose) Rotate(v r3.Vector) r3.Vector {
	return p.Rotation.Apply(v)
}

// RelativeDisplacement returns the displacement from pose a to pose b, both
// expressed in the same fixed reference: inverse(a) ∘ b. Callers must not
// assume the result is small unless the elapsed time between a and b is.
func RelativeDisplacement(a, b Pose) Pose {
	return a.Inverse().Compose(b)
}
