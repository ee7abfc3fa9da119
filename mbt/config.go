package mbt

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Config carries the tracker parameters. All angles are in radians in the
// running tracker; the JSON form uses degrees for the two visibility angles
// since that is how they are usually written down.
type Config struct {
	// Visibility hysteresis: a hidden face appears below AngleAppears, a
	// visible face disappears above AngleDisappears.
	AngleAppears    float64 `json:"angle_appears_deg"`
	AngleDisappears float64 `json:"angle_disappears_deg"`

	// Border in pixels added around the visible faces' silhouettes when
	// building the feature-detection mask.
	MaskBorder int `json:"mask_border"`

	// Points whose robust weights average below this threshold are removed
	// after the solve.
	ThresholdOutlier float64 `json:"threshold_outlier"`

	// VVS gain in (0,1] and iteration cap.
	Lambda  float64 `json:"lambda"`
	MaxIter int     `json:"max_iter"`

	// Minimum tracked points per face for it to be usable.
	MinPointsPerFace int `json:"min_points_per_face"`

	// Recompute and re-weight the interaction matrix on every iteration
	// (not just the first).
	ComputeInteraction bool `json:"compute_interaction"`
}

// DefaultConfig returns the stock parameters (angles already in radians).
func DefaultConfig() Config {
	return Config{
		AngleAppears:       math.Pi / 2,
		AngleDisappears:    math.Pi / 2,
		MaskBorder:         10,
		ThresholdOutlier:   0.5,
		Lambda:             0.8,
		MaxIter:            200,
		MinPointsPerFace:   defaultMinPointsPerFace,
		ComputeInteraction: true,
	}
}

// LoadConfig reads a Config from a JSON file. Fields absent from the file
// keep their default values; the visibility angles are converted from
// degrees to radians.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	cfg.AngleAppears = 90
	cfg.AngleDisappears = 90

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "can't read tracker config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "can't parse tracker config")
	}
	cfg.AngleAppears = cfg.AngleAppears * math.Pi / 180.0
	cfg.AngleDisappears = cfg.AngleDisappears * math.Pi / 180.0
	return cfg, nil
}
