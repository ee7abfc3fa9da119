package mbt

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

func testCamera() CameraParameters {
	return CameraParameters{Px: 800, Py: 800, U0: 320, V0: 240}
}

// squareCorners returns a 10x10 cm square in the z=0 object plane, ordered
// so the outward normal points along -z (towards a camera looking down +z).
func squareCorners() []r3.Vector {
	return []r3.Vector{
		{X: -0.05, Y: -0.05, Z: 0},
		{X: -0.05, Y: 0.05, Z: 0},
		{X: 0.05, Y: 0.05, Z: 0},
		{X: 0.05, Y: -0.05, Z: 0},
	}
}

// tiltedPose places the object half a meter in front of the camera, rotated
// about the x axis so the face normal makes the given angle with the
// direction towards the camera.
func tiltedPose(angle float64) Pose {
	p := ExpMap(NewTwist(r3.Vector{}, r3.Vector{X: angle}))
	p.Translation = r3.Vector{Z: 0.5}
	return p
}

func projectPoint(cam CameraParameters, pose Pose, pt r3.Vector) r2.Point {
	p := pose.Transform(pt)
	return cam.MeterToPixel(r2.Point{X: p.X / p.Z, Y: p.Y / p.Z})
}

func TestNewPlanarFaceRejectsDegenerateCorners(t *testing.T) {
	collinear := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: 0, Z: 0},
		{X: 0.2, Y: 0, Z: 0},
	}
	if _, err := NewPlanarFace(0, collinear, testCamera()); !errors.Is(err, ErrDegenerateFace) {
		t.Errorf("wrong error for collinear corners: %v", err)
	}
	if _, err := NewPlanarFace(0, squareCorners()[:2], testCamera()); err == nil {
		t.Error("expected error for 2-corner face")
	}
}

func TestIsVisibleAgainstThreshold(t *testing.T) {
	face, err := NewPlanarFace(0, squareCorners(), testCamera())
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		angle     float64
		threshold float64
		visible   bool
	}{
		{0.0, math.Pi / 2, true},
		{0.3, 0.3 + 1e-6, true},
		{0.3, 0.3 - 1e-6, false},
		{1.0, 0.5, false},
		{0.2, 0.5, true},
	}
	for _, c := range cases {
		if got := face.IsVisible(tiltedPose(c.angle), c.threshold); got != c.visible {
			t.Errorf("angle %v threshold %v: wrong answer: %v, correct answer: %v", c.angle, c.threshold, got, c.visible)
		}
	}
}

func TestInitCorrespondencesKeepsOnlyPointsInsidePolygon(t *testing.T) {
	cam := testCamera()
	face, err := NewPlanarFace(0, squareCorners(), cam)
	if err != nil {
		t.Fatal(err)
	}
	refPose := NewPose(IdentityRotation(), r3.Vector{Z: 0.5})
	roi, err := face.Project(refPose)
	if err != nil {
		t.Fatal(err)
	}

	features := map[int64]r2.Point{
		1: projectPoint(cam, refPose, r3.Vector{X: 0.0, Y: 0.0}),    // inside
		2: projectPoint(cam, refPose, r3.Vector{X: 0.04, Y: -0.04}), // inside
		3: projectPoint(cam, refPose, r3.Vector{X: 0.2, Y: 0.0}),    // outside
		4: {X: 5, Y: 5},                                             // far outside
	}
	if err := face.InitCorrespondences(features, roi, refPose); err != nil {
		t.Fatal(err)
	}
	if face.GetNbPointsCur() != 2 {
		t.Errorf("wrong number of retained points: %d, correct answer: 2", face.GetNbPointsCur())
	}
	if face.GetNbPointsInit() != 2 {
		t.Errorf("wrong number of initial points: %d, correct answer: 2", face.GetNbPointsInit())
	}
}

func TestInitCorrespondencesRejectsPlaneThroughOpticalCenter(t *testing.T) {
	cam := testCamera()
	// Plane containing the camera origin under the identity pose.
	corners := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: 0, Z: 0},
		{X: 0.1, Y: 0.1, Z: 0},
		{X: 0, Y: 0.1, Z: 0},
	}
	face, err := NewPlanarFace(0, corners, cam)
	if err != nil {
		t.Fatal(err)
	}
	err = face.InitCorrespondences(map[int64]r2.Point{}, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, IdentityPose())
	if !errors.Is(err, ErrDegenerateFace) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestRemoveOutliersIsPermanent(t *testing.T) {
	cam := testCamera()
	face, err := NewPlanarFace(0, squareCorners(), cam)
	if err != nil {
		t.Fatal(err)
	}
	refPose := NewPose(IdentityRotation(), r3.Vector{Z: 0.5})
	roi, err := face.Project(refPose)
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeTracker{}
	features := make(map[int64]r2.Point)
	for i := 0; i < 12; i++ {
		x := -0.04 + 0.008*float64(i)
		pt := projectPoint(cam, refPose, r3.Vector{X: x, Y: 0.01 * float64(i%3)})
		features[int64(i)] = pt
		fake.features = append(fake.features, Feature{ID: int64(i), Point: pt})
	}
	if err := face.InitCorrespondences(features, roi, refPose); err != nil {
		t.Fatal(err)
	}
	if !face.HasEnoughPoints() {
		t.Fatalf("expected enough points with %d tracked", face.GetNbPointsCur())
	}

	// Zero out the weights of the first three points (row order is by id).
	weights := make([]float64, 2*face.GetNbPointsCur())
	for i := range weights {
		weights[i] = 1
	}
	weights[0], weights[1] = 0, 0
	weights[2], weights[3] = 0, 0
	weights[4], weights[5] = 0, 0
	face.RemoveOutliers(weights, 0.5)

	if face.GetNbPointsCur() != 9 {
		t.Errorf("wrong number of points after removal: %d, correct answer: 9", face.GetNbPointsCur())
	}
	if face.HasEnoughPoints() {
		t.Error("face should not have enough points after removal")
	}

	// The tracker still carries all 12 points; the removed ids must not come
	// back.
	face.RefreshCorrespondences(fake)
	if face.GetNbPointsCur() != 9 {
		t.Errorf("removed points reappeared: %d, correct answer: 9", face.GetNbPointsCur())
	}
}

func TestComputeHomographyTransfersPlanePoints(t *testing.T) {
	cam := testCamera()
	face, err := NewPlanarFace(0, squareCorners(), cam)
	if err != nil {
		t.Fatal(err)
	}
	refPose := NewPose(IdentityRotation(), r3.Vector{Z: 0.5})
	roi, err := face.Project(refPose)
	if err != nil {
		t.Fatal(err)
	}
	if err := face.InitCorrespondences(map[int64]r2.Point{}, roi, refPose); err != nil {
		t.Fatal(err)
	}

	motion := ExpMap(Twist{0.01, -0.02, 0.03, 0.04, -0.02, 0.05})
	h, err := face.ComputeHomography(motion)
	if err != nil {
		t.Fatal(err)
	}

	// Transfer of a plane point must match projecting the moved 3D point.
	for _, objPt := range []r3.Vector{{X: 0.02, Y: -0.03}, {X: -0.04, Y: 0.045}, {}} {
		refCam := refPose.Transform(objPt)
		refNorm := r2.Point{X: refCam.X / refCam.Z, Y: refCam.Y / refCam.Z}
		curCam := motion.Transform(refCam)
		wantNorm := r2.Point{X: curCam.X / curCam.Z, Y: curCam.Y / curCam.Z}

		got, err := h.Apply(refNorm)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got.X-wantNorm.X) > 1e-10 || math.Abs(got.Y-wantNorm.Y) > 1e-10 {
			t.Errorf("wrong answer: %v, correct answer: %v", got, wantNorm)
		}
	}
}
