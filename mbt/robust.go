package mbt

import "math"

// Tukey biweight tuning constant (95% asymptotic efficiency on Gaussian
// noise).
const tukeyC = 4.6851

// madToSigma converts a median absolute deviation to a standard deviation
// estimate under a Gaussian model.
const madToSigma = 1.4826

// Robust computes per-residual weights with a Tukey-type M-estimator:
// residuals far from the bulk of the data receive near-zero weight, inliers
// a weight near 1.
type Robust struct {
	// Minimum scale. When the residual spread falls below this value the
	// estimator does not sharpen further, so that noise-free data keeps all
	// weights at 1.
	threshold float64
	iteration int

	centered []float64
}

// NewRobust creates an estimator with capacity for n residuals.
func NewRobust(n int) *Robust {
	return &Robust{
		centered: make([]float64, 0, n),
	}
}

// SetThreshold sets the minimum scale (same unit as the residuals).
func (robust *Robust) SetThreshold(threshold float64) {
	robust.threshold = threshold
}

// SetIteration records the solver iteration, for diagnostics.
func (robust *Robust) SetIteration(iteration int) {
	robust.iteration = iteration
}

// MEstimatorTukey fills weights with the Tukey biweight of each residual.
// The scale is the median absolute deviation of the residuals, floored at
// the configured threshold. weights must have the same length as residuals.
func (robust *Robust) MEstimatorTukey(residuals, weights []float64) {
	n := len(residuals)
	if n == 0 {
		return
	}

	robust.centered = append(robust.centered[:0], residuals...)
	med := median(robust.centered)
	for i, r := range residuals {
		robust.centered[i] = math.Abs(r - med)
	}
	sigma := madToSigma * median(robust.centered)
	if sigma < robust.threshold {
		sigma = robust.threshold
	}

	cutoff := tukeyC * sigma
	if cutoff < 1e-12 {
		// All residuals agree and no noise floor is configured.
		for i := range weights {
			weights[i] = 1
		}
		return
	}
	for i, r := range residuals {
		u := math.Abs(r - med)
		if u >= cutoff {
			weights[i] = 0
			continue
		}
		ratio := u / cutoff
		t := 1 - ratio*ratio
		weights[i] = t * t
	}
}
