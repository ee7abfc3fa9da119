package mbt

import (
	"image"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrModelNotInitialized is returned when tracking is attempted before
	// any face has been added.
	ErrModelNotInitialized = errors.New("model not initialized")
	// ErrCameraNotInitialized is returned when tracking is attempted before
	// the camera parameters have been set.
	ErrCameraNotInitialized = errors.New("camera not initialized")
	// ErrInsufficientData is returned when fewer than 4 usable points or no
	// usable face remain; recoverable by external re-acquisition only.
	ErrInsufficientData = errors.New("not enough data to track")
	// ErrTrackingLost is returned by TestTracking when too few points remain
	// trackable in total.
	ErrTrackingLost = errors.New("tracking lost")
)

// Minimum total usable points for a frame's solve to be attempted.
const minTotalPoints = 4

// Minimum total tracked points below which TestTracking declares the track
// lost.
const minTrackedPoints = 10

// KltTracker estimates the 6-DOF pose of a rigid object in a video stream by
// following sparse KLT features across frames and refining the pose with a
// robust virtual-visual-servoing solve. Not safe for concurrent use; the
// caller drives it with one frame at a time.
type KltTracker struct {
	cfg    Config
	cam    CameraParameters
	faces  []Face
	klt    FeatureTracker
	logger golog.Logger

	cameraInitialized bool

	// currentPose = incremental ∘ referencePose at all times after a solve.
	currentPose   Pose // cMo
	referencePose Pose // c0Mo, pose at the last full initialization
	incremental   Pose // ctTc0, accumulated since then

	// Epoch of the correspondence tables; regenerated on every full
	// (re)initialization. Feature ids are only comparable within one epoch.
	sessionID uuid.UUID

	// Faces included in the last solve and their point counts at solve
	// time; defines the layout of the weight vector.
	solvedFaces  []Face
	solvedCounts []int
}

// NewKltTracker creates a tracker around a feature-tracking backend with
// default parameters. A nil logger falls back to a named default.
func NewKltTracker(klt FeatureTracker, logger golog.Logger) *KltTracker {
	return NewKltTrackerWithConfig(klt, DefaultConfig(), logger)
}

// NewKltTrackerWithConfig creates a tracker with explicit parameters.
func NewKltTrackerWithConfig(klt FeatureTracker, cfg Config, logger golog.Logger) *KltTracker {
	if logger == nil {
		logger = golog.NewLogger("mbt")
	}
	return &KltTracker{
		cfg:         cfg,
		klt:         klt,
		logger:      logger,
		currentPose: IdentityPose(),
	}
}

// SetCameraParameters sets the camera intrinsics, shared with every face.
func (tracker *KltTracker) SetCameraParameters(cam CameraParameters) {
	tracker.cam = cam
	for _, face := range tracker.faces {
		face.SetCameraParameters(cam)
	}
	tracker.cameraInitialized = true
}

// SetPose sets the current pose estimate (object frame to camera frame).
func (tracker *KltTracker) SetPose(pose Pose) {
	tracker.currentPose = pose
}

// GetPose returns the current pose estimate.
func (tracker *KltTracker) GetPose() Pose {
	return tracker.currentPose
}

// GetSessionID returns the identifier of the current detection session.
// Feature ids and correspondences are only comparable within one session.
func (tracker *KltTracker) GetSessionID() uuid.UUID {
	return tracker.sessionID
}

// GetFaces returns the model faces. The slice must not be mutated while
// tracking.
func (tracker *KltTracker) GetFaces() []Face {
	return tracker.faces
}

// InitFaceFromCorners adds a planar face built from 3 or more ordered
// corners in the object frame. Vertex order defines the outward normal by
// the right-hand rule.
func (tracker *KltTracker) InitFaceFromCorners(corners []r3.Vector) error {
	face, err := NewPlanarFace(len(tracker.faces), corners, tracker.cam)
	if err != nil {
		return errors.Wrap(err, "can't add face")
	}
	face.SetMinPoints(tracker.cfg.MinPointsPerFace)
	tracker.faces = append(tracker.faces, face)
	return nil
}

// Init (re)initializes the whole tracking state from the current pose:
// detects features inside the visible faces' silhouettes and rebuilds every
// face's correspondences. Must not run concurrently with Track.
func (tracker *KltTracker) Init(img *image.Gray) error {
	if len(tracker.faces) == 0 {
		return ErrModelNotInitialized
	}
	if !tracker.cameraInitialized || !tracker.cam.valid() {
		return ErrCameraNotInitialized
	}

	tracker.referencePose = tracker.currentPose
	tracker.incremental = IdentityPose()

	mask := newDetectionMask(img.Bounds())
	for _, face := range tracker.faces {
		if !face.IsVisible(tracker.referencePose, tracker.cfg.AngleAppears) {
			face.SetVisible(false)
			continue
		}
		face.SetVisible(true)
		polygon, err := face.Project(tracker.referencePose)
		if err != nil {
			tracker.logger.Warnf("skipping face %d in detection mask: %v", face.GetIndex(), err)
			continue
		}
		mask.addPolygon(polygon, tracker.cfg.MaskBorder)
	}

	if err := tracker.klt.InitTracking(img, mask.img); err != nil {
		return errors.Wrap(err, "feature detection failed")
	}

	features := make(map[int64]r2.Point, tracker.klt.NumFeatures())
	for i := 0; i < tracker.klt.NumFeatures(); i++ {
		f := tracker.klt.GetFeature(i)
		features[f.ID] = f.Point
	}

	for _, face := range tracker.faces {
		if !face.GetVisible() {
			face.SetIsTracked(false)
			continue
		}
		roi, err := face.Project(tracker.referencePose)
		if err != nil || !roiInsideImage(img.Bounds(), roi) {
			face.SetIsTracked(false)
			continue
		}
		if err := face.InitCorrespondences(features, roi, tracker.referencePose); err != nil {
			tracker.logger.Warnf("face %d excluded at init: %v", face.GetIndex(), err)
			face.SetIsTracked(false)
			continue
		}
		face.SetIsTracked(true)
	}

	tracker.sessionID = uuid.New()
	tracker.logger.Debugf("tracking session %s: %d features detected", tracker.sessionID, len(features))
	return nil
}

// PreTracking advances the feature tracker to the new frame and refreshes
// every tracked face's correspondences. Returns the total usable point count
// and the number of usable faces; fails with ErrInsufficientData when the
// frame cannot be solved.
func (tracker *KltTracker) PreTracking(img *image.Gray) (nbInfos, nbFaceUsed int, err error) {
	if err := tracker.klt.Track(img); err != nil {
		return 0, 0, errors.Wrap(err, "feature tracking failed")
	}

	for _, face := range tracker.faces {
		if !face.GetIsTracked() {
			continue
		}
		face.RefreshCorrespondences(tracker.klt)
		if face.HasEnoughPoints() {
			nbInfos += face.GetNbPointsCur()
			nbFaceUsed++
		}
	}

	if nbInfos < minTotalPoints || nbFaceUsed == 0 {
		return nbInfos, nbFaceUsed, errors.Wrapf(ErrInsufficientData,
			"%d points on %d faces", nbInfos, nbFaceUsed)
	}
	return nbInfos, nbFaceUsed, nil
}

// PostTracking strips the outliers flagged by the solver's weight vector and
// re-evaluates face visibility against the updated pose, with hysteresis.
// Returns true when a face transitioned into or out of visibility, in which
// case the caller must re-run full initialization.
func (tracker *KltTracker) PostTracking(weights []float64) bool {
	shift := 0
	for k, face := range tracker.solvedFaces {
		// Offsets follow the solve-time counts: removal shrinks the face's
		// point set but not the weight vector layout.
		n := tracker.solvedCounts[k]
		face.RemoveOutliers(weights[shift:shift+2*n], tracker.cfg.ThresholdOutlier)
		shift += 2 * n
	}

	reinit := false
	for _, face := range tracker.faces {
		if face.GetVisible() {
			if !face.IsVisible(tracker.currentPose, tracker.cfg.AngleDisappears) {
				face.SetVisible(false)
				if face.GetIsTracked() {
					reinit = true
				}
				face.SetIsTracked(false)
			}
		} else if face.IsVisible(tracker.currentPose, tracker.cfg.AngleAppears) {
			face.SetVisible(true)
			reinit = true
		}
	}
	return reinit
}

// Track processes one frame: advances the features, solves for the pose
// update and handles visibility transitions. Returns the updated pose and
// whether a full re-initialization occurred. On error the pose is left at
// its previous value.
func (tracker *KltTracker) Track(img *image.Gray) (Pose, bool, error) {
	if _, _, err := tracker.PreTracking(img); err != nil {
		return tracker.currentPose, false, err
	}

	weights, err := tracker.ComputeVVS()
	if err != nil {
		return tracker.currentPose, false, err
	}

	reinit := tracker.PostTracking(weights)
	if reinit {
		if err := tracker.Init(img); err != nil {
			return tracker.currentPose, true, errors.Wrap(err, "re-initialization failed")
		}
	}
	return tracker.currentPose, reinit, nil
}

// TestTracking checks the quality of the track. Fails with ErrTrackingLost
// when fewer than 10 points remain trackable in total; recovery requires
// re-detecting the object from scratch.
func (tracker *KltTracker) TestTracking() error {
	total := 0
	for _, face := range tracker.faces {
		if face.GetIsTracked() {
			total += face.GetNbPointsCur()
		}
	}
	if total < minTrackedPoints {
		return errors.Wrapf(ErrTrackingLost, "%d points remaining", total)
	}
	return nil
}

// FaceOutline is the projected 2D outline of one face with its flags, for
// external rendering.
type FaceOutline struct {
	Index   int
	Visible bool
	Tracked bool
	Polygon []r2.Point
}

// FaceOutlines projects the model under the current pose. When fullModel is
// false only tracked faces are returned. Faces that fail projection are
// skipped.
func (tracker *KltTracker) FaceOutlines(fullModel bool) []FaceOutline {
	outlines := make([]FaceOutline, 0, len(tracker.faces))
	for _, face := range tracker.faces {
		if !fullModel && !face.GetIsTracked() {
			continue
		}
		polygon, err := face.Project(tracker.currentPose)
		if err != nil {
			continue
		}
		outlines = append(outlines, FaceOutline{
			Index:   face.GetIndex(),
			Visible: face.GetVisible(),
			Tracked: face.GetIsTracked(),
			Polygon: polygon,
		})
	}
	return outlines
}
