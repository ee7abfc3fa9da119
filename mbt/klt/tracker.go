// Package klt implements the point-feature tracking backend of
// github.com/LdDl/mbt-go/mbt on top of OpenCV (gocv): Shi-Tomasi corner
// detection plus pyramidal Lucas-Kanade optical flow. It is the only
// package of the module that requires cgo/OpenCV.
package klt

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/LdDl/mbt-go/mbt"
)

// Config holds the detection and flow parameters.
type Config struct {
	// Maximum number of corners to detect.
	MaxFeatures int `json:"max_features"`
	// Shi-Tomasi quality level relative to the best corner.
	Quality float64 `json:"quality"`
	// Minimum distance between detected corners, in pixels.
	MinDistance float64 `json:"min_distance"`
	// Lucas-Kanade search window size in pixels.
	WindowSize int `json:"window_size"`
	// Number of pyramid levels for the flow.
	PyramidLevels int `json:"pyramid_levels"`
}

// DefaultConfig returns the stock detection parameters.
func DefaultConfig() Config {
	return Config{
		MaxFeatures:   10000,
		Quality:       0.01,
		MinDistance:   5,
		WindowSize:    5,
		PyramidLevels: 3,
	}
}

// Tracker is a gocv-backed implementation of mbt.FeatureTracker. Ids are
// assigned at detection and stay stable while a point survives the flow; a
// dropped id never reappears.
type Tracker struct {
	cfg    Config
	nextID int64
	ids    []int64
	points []r2.Point
	prev   gocv.Mat
	hasRef bool
}

// New creates a tracker. Call Close to release the OpenCV buffers.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:  cfg,
		prev: gocv.NewMat(),
	}
}

// Close releases the OpenCV buffers.
func (t *Tracker) Close() error {
	return t.prev.Close()
}

// InitTracking detects corners in img restricted to non-zero pixels of
// mask (nil mask means the whole image) and resets the live point set.
func (t *Tracker) InitTracking(img *image.Gray, mask *image.Gray) error {
	frame, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return errors.Wrap(err, "can't convert frame")
	}
	defer frame.Close()

	corners := gocv.NewMat()
	defer corners.Close()
	gocv.GoodFeaturesToTrack(frame, &corners, t.cfg.MaxFeatures, t.cfg.Quality, t.cfg.MinDistance)

	t.ids = t.ids[:0]
	t.points = t.points[:0]
	for i := 0; i < corners.Rows(); i++ {
		pt := corners.GetVecfAt(i, 0)
		x, y := float64(pt[0]), float64(pt[1])
		if mask != nil && mask.GrayAt(int(x), int(y)).Y == 0 {
			continue
		}
		t.ids = append(t.ids, t.nextID)
		t.nextID++
		t.points = append(t.points, r2.Point{X: x, Y: y})
	}

	frame.CopyTo(&t.prev)
	t.hasRef = true
	return nil
}

// Track advances the live points to their positions in img with pyramidal
// Lucas-Kanade flow; points whose flow status is bad are dropped.
func (t *Tracker) Track(img *image.Gray) error {
	if !t.hasRef {
		return errors.New("InitTracking must be called before Track")
	}
	frame, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return errors.Wrap(err, "can't convert frame")
	}
	defer frame.Close()

	if len(t.points) > 0 {
		prevPts := pointsToMat(t.points)
		defer prevPts.Close()
		nextPts := gocv.NewMat()
		defer nextPts.Close()
		status := gocv.NewMat()
		defer status.Close()
		flowErr := gocv.NewMat()
		defer flowErr.Close()

		criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 20, 0.03)
		gocv.CalcOpticalFlowPyrLKWithParams(t.prev, frame, prevPts, nextPts, &status, &flowErr,
			image.Pt(t.cfg.WindowSize, t.cfg.WindowSize), t.cfg.PyramidLevels, criteria, 0, 1e-4)

		survivorIDs := t.ids[:0]
		survivors := t.points[:0]
		for i := 0; i < nextPts.Rows(); i++ {
			if status.GetUCharAt(i, 0) == 0 {
				continue
			}
			pt := nextPts.GetVecfAt(i, 0)
			survivorIDs = append(survivorIDs, t.ids[i])
			survivors = append(survivors, r2.Point{X: float64(pt[0]), Y: float64(pt[1])})
		}
		t.ids = survivorIDs
		t.points = survivors
	}

	frame.CopyTo(&t.prev)
	return nil
}

// NumFeatures returns the size of the live point set.
func (t *Tracker) NumFeatures() int {
	return len(t.points)
}

// GetFeature returns the i-th live point.
func (t *Tracker) GetFeature(i int) mbt.Feature {
	return mbt.Feature{ID: t.ids[i], Point: t.points[i]}
}

func pointsToMat(points []r2.Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(points), 1, gocv.MatTypeCV32FC2)
	for i, p := range points {
		m.SetFloatAt(i, 0, float32(p.X))
		m.SetFloatAt(i, 1, float32(p.Y))
	}
	return m
}

var _ mbt.FeatureTracker = (*Tracker)(nil)
