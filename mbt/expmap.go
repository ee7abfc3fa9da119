package mbt

import (
	"math"

	"github.com/golang/geo/r3"
)

// Twist is a 6-vector rigid-body motion: translational part first
// (vx, vy, vz), rotational part second (wx, wy, wz), in radians.
type Twist [6]float64

// NewTwist creates a twist from its translational and rotational parts.
func NewTwist(v, w r3.Vector) Twist {
	return Twist{v.X, v.Y, v.Z, w.X, w.Y, w.Z}
}

// TranslationPart returns the translational components of the twist.
func (t Twist) TranslationPart() r3.Vector {
	return r3.Vector{X: t[0], Y: t[1], Z: t[2]}
}

// RotationPart returns the rotational components of the twist.
func (t Twist) RotationPart() r3.Vector {
	return r3.Vector{X: t[3], Y: t[4], Z: t[5]}
}

// skew returns the cross-product matrix of u.
func skew(u r3.Vector) RotationMatrix {
	return RotationMatrix{
		0, -u.Z, u.Y,
		u.Z, 0, -u.X,
		-u.Y, u.X, 0,
	}
}

func matAdd(a, b RotationMatrix) RotationMatrix {
	var out RotationMatrix
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func matScale(s float64, a RotationMatrix) RotationMatrix {
	var out RotationMatrix
	for i := range a {
		out[i] = s * a[i]
	}
	return out
}

// rotationFromAxisAngle builds the rotation matrix for the axis-angle vector
// u (Rodrigues formula). The angle is the norm of u.
func rotationFromAxisAngle(u r3.Vector) RotationMatrix {
	theta := u.Norm()
	ux := skew(u)
	ux2 := ux.Mul(ux)
	r := IdentityRotation()
	r = matAdd(r, matScale(sinc(theta), ux))
	r = matAdd(r, matScale(mcosc(theta), ux2))
	return r
}

// axisAngleFromRotation extracts the axis-angle vector whose Rodrigues image
// is r. The returned angle is in [0, π].
func axisAngleFromRotation(r RotationMatrix) r3.Vector {
	trace := r[0] + r[4] + r[8]
	cosTheta := 0.5 * (trace - 1.0)
	cosTheta = maxFloat64(-1.0, minFloat64(1.0, cosTheta))
	theta := math.Acos(cosTheta)

	w := r3.Vector{
		X: r.At(2, 1) - r.At(1, 2),
		Y: r.At(0, 2) - r.At(2, 0),
		Z: r.At(1, 0) - r.At(0, 1),
	}

	sinTheta := math.Sin(theta)
	if math.Abs(sinTheta) > 1e-6 {
		return w.Mul(theta / (2.0 * sinTheta))
	}
	if theta < 1.0 {
		// theta near zero: w ≈ 2u
		return w.Mul(0.5)
	}
	// theta near π: R + I = 2uu^T/θ², recover the axis from the strongest
	// diagonal to stay away from cancellation.
	dx := 0.5 * (r.At(0, 0) + 1.0)
	dy := 0.5 * (r.At(1, 1) + 1.0)
	dz := 0.5 * (r.At(2, 2) + 1.0)
	var axis r3.Vector
	switch {
	case dx >= dy && dx >= dz:
		ax := math.Sqrt(maxFloat64(dx, 0))
		axis = r3.Vector{X: ax, Y: 0.5 * r.At(0, 1) / ax, Z: 0.5 * r.At(0, 2) / ax}
	case dy >= dz:
		ay := math.Sqrt(maxFloat64(dy, 0))
		axis = r3.Vector{X: 0.5 * r.At(0, 1) / ay, Y: ay, Z: 0.5 * r.At(1, 2) / ay}
	default:
		az := math.Sqrt(maxFloat64(dz, 0))
		axis = r3.Vector{X: 0.5 * r.At(0, 2) / az, Y: 0.5 * r.At(1, 2) / az, Z: az}
	}
	return axis.Normalize().Mul(theta)
}

// ExpMap converts a twist to the rigid transform it generates (exponential
// map on SE(3)).
func ExpMap(t Twist) Pose {
	u := t.RotationPart()
	theta := u.Norm()
	rot := rotationFromAxisAngle(u)

	// Left Jacobian V: translation of the screw motion.
	ux := skew(u)
	ux2 := ux.Mul(ux)
	v := IdentityRotation()
	v = matAdd(v, matScale(mcosc(theta), ux))
	v = matAdd(v, matScale(msinc(theta), ux2))

	return Pose{
		Rotation:    rot,
		Translation: v.Apply(t.TranslationPart()),
	}
}

// LogMap converts a rigid transform back to its generating twist
// (logarithm map on SE(3)); the inverse of ExpMap.
func LogMap(p Pose) Twist {
	u := axisAngleFromRotation(p.Rotation)
	theta := u.Norm()

	// Inverse of the left Jacobian: V⁻¹ = I - ½[u]x + k[u]x².
	var k float64
	if theta < angleEps {
		k = 1.0 / 12.0
	} else {
		k = (1.0 - sinc(theta)/(2.0*mcosc(theta))) / (theta * theta)
	}
	ux := skew(u)
	ux2 := ux.Mul(ux)
	vinv := IdentityRotation()
	vinv = matAdd(vinv, matScale(-0.5, ux))
	vinv = matAdd(vinv, matScale(k, ux2))

	return NewTwist(vinv.Apply(p.Translation), u)
}
