package mbt

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

const poseEps = 1e-10

func poseIsIdentity(p Pose, tol float64) bool {
	id := IdentityRotation()
	for i := range p.Rotation {
		if math.Abs(p.Rotation[i]-id[i]) > tol {
			return false
		}
	}
	return p.Translation.Norm() <= tol
}

func TestComposeWithInverseIsIdentity(t *testing.T) {
	poses := []Pose{
		IdentityPose(),
		ExpMap(Twist{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}),
		ExpMap(Twist{-1.0, 2.0, 0.5, 0.0, 0.0, 1.2}),
		ExpMap(Twist{0.0, 0.0, 0.5, 2.8, -0.3, 0.1}),
	}
	for _, p := range poses {
		if !poseIsIdentity(p.Compose(p.Inverse()), poseEps) {
			t.Errorf("p * p^-1 is not identity for %+v", p)
		}
		if !poseIsIdentity(p.Inverse().Compose(p), poseEps) {
			t.Errorf("p^-1 * p is not identity for %+v", p)
		}
	}
}

func TestComposeTransformsPoints(t *testing.T) {
	a := ExpMap(Twist{0.1, 0, 0, 0, 0, math.Pi / 4})
	b := ExpMap(Twist{0, 0.2, 0, math.Pi / 6, 0, 0})
	pt := r3.Vector{X: 0.3, Y: -0.1, Z: 0.7}

	composed := a.Compose(b).Transform(pt)
	sequential := a.Transform(b.Transform(pt))
	if composed.Sub(sequential).Norm() > poseEps {
		t.Errorf("wrong answer: %v, correct answer: %v", composed, sequential)
	}
}

func TestRelativeDisplacement(t *testing.T) {
	a := ExpMap(Twist{0.1, 0.2, 0.3, 0.1, -0.2, 0.3})
	d := ExpMap(Twist{0.05, 0, -0.02, 0, 0.1, 0})
	b := a.Compose(d)

	rel := RelativeDisplacement(a, b)
	if !poseIsIdentity(rel.Compose(d.Inverse()), 1e-9) {
		t.Errorf("wrong relative displacement: %+v, correct answer: %+v", rel, d)
	}
}

func TestRotationTransposeIsInverse(t *testing.T) {
	r := rotationFromAxisAngle(r3.Vector{X: 0.3, Y: -0.5, Z: 0.7})
	prod := r.Mul(r.Transpose())
	id := IdentityRotation()
	for i := range prod {
		if math.Abs(prod[i]-id[i]) > poseEps {
			t.Errorf("R * R^T is not identity: %v", prod)
			break
		}
	}
}
