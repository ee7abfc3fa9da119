package mbt

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// Face is the interface for one planar facet of the tracked object model.
// Faces own the 2D feature correspondences that fall on them and know how to
// turn those correspondences into residual/Jacobian blocks for the pose
// solver. Today the only implementation is *PlanarFace.
type Face interface {
	// Identity
	GetIndex() int

	// SetCameraParameters sets the intrinsics used for projection.
	SetCameraParameters(cam CameraParameters)

	// Visibility and lifecycle flags
	GetVisible() bool
	SetVisible(visible bool)
	GetIsTracked() bool
	SetIsTracked(tracked bool)

	// IsVisible reports whether the face would be visible under pose: the
	// angle between the face normal and the direction towards the camera is
	// at most angleThreshold (radians).
	IsVisible(pose Pose, angleThreshold float64) bool

	// Project returns the face polygon projected to pixel coordinates under
	// pose. Fails when a vertex falls behind the camera.
	Project(pose Pose) ([]r2.Point, error)

	// InitCorrespondences retains the detected features whose position falls
	// inside roi (the face's projected polygon) as this face's tracked point
	// set, and caches the face plane in the reference camera frame given by
	// refPose. Zero retained points is not an error.
	InitCorrespondences(features map[int64]r2.Point, roi []r2.Point, refPose Pose) error

	// RefreshCorrespondences rebuilds the current positions of this face's
	// points from the tracker's live set, dropping lost points.
	RefreshCorrespondences(tracker FeatureTracker)

	// Point bookkeeping
	GetNbPointsInit() int
	GetNbPointsCur() int
	HasEnoughPoints() bool

	// ComputeHomography derives the planar homography mapping reference-view
	// normalized coordinates to current-view ones for this face's plane under
	// the incremental transform, and caches it for the interaction matrix.
	ComputeHomography(transform Pose) (Homography, error)

	// ComputeInteractionMatrixAndResidual fills the caller-provided blocks
	// (2 rows per current point) with the homography-transfer residual and
	// the image Jacobian. The face has no knowledge of its offset in the
	// stacked system: residual must have length 2*GetNbPointsCur() and
	// jacobian dimensions (2*GetNbPointsCur()) x 6.
	ComputeInteractionMatrixAndResidual(residual *mat.VecDense, jacobian *mat.Dense) error

	// RemoveOutliers permanently drops every point whose pair of weights
	// averages below threshold. weights has 2 entries per current point, in
	// the same row order produced by ComputeInteractionMatrixAndResidual.
	RemoveOutliers(weights []float64, threshold float64)
}
