package mbt

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateFace is returned when a face has zero area or its plane
// cannot support a homography (e.g. the plane passes through the optical
// center).
var ErrDegenerateFace = errors.New("degenerate face plane")

// Default minimum number of tracked points a face needs to take part in the
// solve. Four points constrain the homography; the default is chosen
// conservatively higher.
const defaultMinPointsPerFace = 10

// PlanarFace is a planar polygon of the object model with its tracked
// 2D feature correspondences. It implements the Face interface.
// Vertices are ordered so that the right-hand rule gives the outward normal.
type PlanarFace struct {
	index     int
	cam       CameraParameters
	corners   []r3.Vector // object frame
	normalObj r3.Vector   // unit outward normal, object frame
	centerObj r3.Vector
	minPoints int

	visible   bool
	isTracked bool

	// Correspondences: feature id -> pixel position at reference frame and
	// in the current frame. ids is kept sorted and defines the residual row
	// order.
	refPoints map[int64]r2.Point
	curPoints map[int64]r2.Point
	ids       []int64

	// Face plane in the reference camera frame (n0·X = d0, d0 > 0), cached
	// by InitCorrespondences.
	normal0 r3.Vector
	dist0   float64

	// Current-frame plane and homography, cached by ComputeHomography.
	homography Homography
	normalCur  r3.Vector
	distCur    float64
}

// NewPlanarFace creates a face from 3 or more ordered corners in the object
// frame. Fails when the corners do not span a plane.
func NewPlanarFace(index int, corners []r3.Vector, cam CameraParameters) (*PlanarFace, error) {
	if len(corners) < 3 {
		return nil, errors.Errorf("face %d: need at least 3 corners, got %d", index, len(corners))
	}
	normal := newellNormal(corners)
	if normal.Norm() < 1e-12 {
		return nil, errors.Wrapf(ErrDegenerateFace, "face %d", index)
	}
	center := r3.Vector{}
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / float64(len(corners)))

	face := PlanarFace{
		index:     index,
		cam:       cam,
		corners:   append([]r3.Vector(nil), corners...),
		normalObj: normal.Normalize(),
		centerObj: center,
		minPoints: defaultMinPointsPerFace,
		refPoints: make(map[int64]r2.Point),
		curPoints: make(map[int64]r2.Point),
	}
	return &face, nil
}

// newellNormal computes the (unnormalized) polygon normal with Newell's
// method, robust to nearly collinear consecutive vertices.
func newellNormal(corners []r3.Vector) r3.Vector {
	var n r3.Vector
	for i := range corners {
		p := corners[i]
		q := corners[(i+1)%len(corners)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	return n
}

// GetIndex returns the face index in the model.
func (face *PlanarFace) GetIndex() int {
	return face.index
}

// GetVisible returns the stored visibility flag.
func (face *PlanarFace) GetVisible() bool {
	return face.visible
}

// SetVisible sets the stored visibility flag.
func (face *PlanarFace) SetVisible(visible bool) {
	face.visible = visible
}

// GetIsTracked returns the tracked flag.
func (face *PlanarFace) GetIsTracked() bool {
	return face.isTracked
}

// SetIsTracked sets the tracked flag. Clearing it does not drop the
// correspondences; they are rebuilt on the next full initialization.
func (face *PlanarFace) SetIsTracked(tracked bool) {
	face.isTracked = tracked
}

// SetMinPoints overrides the minimum point count for HasEnoughPoints.
func (face *PlanarFace) SetMinPoints(minPoints int) {
	face.minPoints = minPoints
}

// SetCameraParameters sets the intrinsics used for projection.
func (face *PlanarFace) SetCameraParameters(cam CameraParameters) {
	face.cam = cam
}

// GetNbCorners returns the number of polygon vertices.
func (face *PlanarFace) GetNbCorners() int {
	return len(face.corners)
}

// GetCorner returns the i-th polygon vertex in the object frame.
func (face *PlanarFace) GetCorner(i int) r3.Vector {
	return face.corners[i]
}

// IsVisible reports whether the angle between the face outward normal and
// the direction from the face center towards the camera is at most
// angleThreshold (radians). A face exactly at the threshold is visible.
func (face *PlanarFace) IsVisible(pose Pose, angleThreshold float64) bool {
	normalCam := pose.Rotate(face.normalObj)
	centerCam := pose.Transform(face.centerObj)
	dist := centerCam.Norm()
	if dist < 1e-12 {
		return true
	}
	toCamera := centerCam.Mul(-1.0 / dist)
	cosAlpha := maxFloat64(-1.0, minFloat64(1.0, normalCam.Dot(toCamera)))
	return math.Acos(cosAlpha) <= angleThreshold
}

// Project returns the face polygon in pixel coordinates under pose. Fails
// when a vertex is behind the camera.
func (face *PlanarFace) Project(pose Pose) ([]r2.Point, error) {
	projected := make([]r2.Point, len(face.corners))
	for i, c := range face.corners {
		pt := pose.Transform(c)
		if pt.Z < 1e-9 {
			return nil, errors.Errorf("face %d: vertex %d behind the camera", face.index, i)
		}
		projected[i] = face.cam.MeterToPixel(r2.Point{X: pt.X / pt.Z, Y: pt.Y / pt.Z})
	}
	return projected, nil
}

// InitCorrespondences caches the face plane in the reference camera frame
// given by refPose and retains the detected features lying inside roi as the
// face's tracked point set. Retaining zero points is not an error; the face
// simply reports not enough points.
func (face *PlanarFace) InitCorrespondences(features map[int64]r2.Point, roi []r2.Point, refPose Pose) error {
	cornersCam := make([]r3.Vector, len(face.corners))
	for i, c := range face.corners {
		cornersCam[i] = refPose.Transform(c)
	}
	normal := newellNormal(cornersCam)
	if normal.Norm() < 1e-12 {
		return errors.Wrapf(ErrDegenerateFace, "face %d", face.index)
	}
	normal = normal.Normalize()
	dist := normal.Dot(cornersCam[0])
	if math.Abs(dist) < 1e-12 {
		return errors.Wrapf(ErrDegenerateFace, "face %d: plane through optical center", face.index)
	}
	if dist < 0 {
		normal = normal.Mul(-1)
		dist = -dist
	}
	face.normal0 = normal
	face.dist0 = dist

	face.refPoints = make(map[int64]r2.Point)
	face.curPoints = make(map[int64]r2.Point)
	for id, pt := range features {
		if pointInPolygon(pt, roi) {
			face.refPoints[id] = pt
			face.curPoints[id] = pt
		}
	}
	face.rebuildIDs()
	return nil
}

// RefreshCorrespondences rebuilds the current point positions from the
// tracker's live set. Points the tracker lost are dropped for this frame and
// all following ones.
func (face *PlanarFace) RefreshCorrespondences(tracker FeatureTracker) {
	face.curPoints = make(map[int64]r2.Point)
	for i := 0; i < tracker.NumFeatures(); i++ {
		f := tracker.GetFeature(i)
		if _, ok := face.refPoints[f.ID]; ok {
			face.curPoints[f.ID] = f.Point
		}
	}
	face.rebuildIDs()
}

func (face *PlanarFace) rebuildIDs() {
	face.ids = face.ids[:0]
	for id := range face.curPoints {
		face.ids = append(face.ids, id)
	}
	sort.Slice(face.ids, func(i, j int) bool { return face.ids[i] < face.ids[j] })
}

// GetNbPointsInit returns the number of points retained at initialization.
func (face *PlanarFace) GetNbPointsInit() int {
	return len(face.refPoints)
}

// GetNbPointsCur returns the number of points tracked in the current frame.
func (face *PlanarFace) GetNbPointsCur() int {
	return len(face.curPoints)
}

// HasEnoughPoints reports whether the face can take part in the solve.
func (face *PlanarFace) HasEnoughPoints() bool {
	return len(face.curPoints) >= face.minPoints
}

// ComputeHomography derives the homography mapping reference-view normalized
// coordinates to current-view ones under the incremental transform, and
// caches the current-frame plane for the interaction matrix.
func (face *PlanarFace) ComputeHomography(transform Pose) (Homography, error) {
	h, err := planeHomography(transform, face.normal0, face.dist0)
	if err != nil {
		return Homography{}, errors.Wrapf(ErrDegenerateFace, "face %d: %v", face.index, err)
	}
	normalCur := transform.Rotate(face.normal0)
	distCur := face.dist0 + normalCur.Dot(transform.Translation)
	if math.Abs(distCur) < 1e-12 {
		return Homography{}, errors.Wrapf(ErrDegenerateFace, "face %d: current plane through optical center", face.index)
	}
	face.homography = h
	face.normalCur = normalCur
	face.distCur = distCur
	return h, nil
}

// ComputeInteractionMatrixAndResidual fills residual and jacobian with two
// rows per current point: the residual is the homography-transferred
// reference point minus the observed current point, in normalized
// coordinates; the Jacobian rows are the classic point image-Jacobian with
// the inverse depth taken from the face plane in the current frame.
// ComputeHomography must have been called for the same incremental
// transform beforehand.
func (face *PlanarFace) ComputeInteractionMatrixAndResidual(residual *mat.VecDense, jacobian *mat.Dense) error {
	rows := 2 * len(face.ids)
	if residual.Len() != rows {
		return errors.Errorf("face %d: residual block has %d rows, want %d", face.index, residual.Len(), rows)
	}
	if r, c := jacobian.Dims(); r != rows || c != 6 {
		return errors.Errorf("face %d: jacobian block is %dx%d, want %dx6", face.index, r, c, rows)
	}

	for i, id := range face.ids {
		cur := face.cam.PixelToMeter(face.curPoints[id])
		ref := face.cam.PixelToMeter(face.refPoints[id])
		transferred, err := face.homography.Apply(ref)
		if err != nil {
			return errors.Wrapf(err, "face %d: point %d", face.index, id)
		}

		x, y := cur.X, cur.Y
		invZ := (face.normalCur.X*x + face.normalCur.Y*y + face.normalCur.Z) / face.distCur

		residual.SetVec(2*i, transferred.X-x)
		residual.SetVec(2*i+1, transferred.Y-y)

		jacobian.Set(2*i, 0, -invZ)
		jacobian.Set(2*i, 1, 0)
		jacobian.Set(2*i, 2, x*invZ)
		jacobian.Set(2*i, 3, x*y)
		jacobian.Set(2*i, 4, -(1 + x*x))
		jacobian.Set(2*i, 5, y)

		jacobian.Set(2*i+1, 0, 0)
		jacobian.Set(2*i+1, 1, -invZ)
		jacobian.Set(2*i+1, 2, y*invZ)
		jacobian.Set(2*i+1, 3, 1+y*y)
		jacobian.Set(2*i+1, 4, -x*y)
		jacobian.Set(2*i+1, 5, -x)
	}
	return nil
}

// RemoveOutliers permanently drops every point whose pair of weights
// averages below threshold. weights carries 2 entries per current point in
// the row order used by ComputeInteractionMatrixAndResidual.
func (face *PlanarFace) RemoveOutliers(weights []float64, threshold float64) {
	n := len(face.ids)
	if len(weights) < 2*n {
		n = len(weights) / 2
	}
	for i := 0; i < n; i++ {
		if 0.5*(weights[2*i]+weights[2*i+1]) < threshold {
			id := face.ids[i]
			delete(face.refPoints, id)
			delete(face.curPoints, id)
		}
	}
	face.rebuildIDs()
}
