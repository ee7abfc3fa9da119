package mbt

import "testing"

func TestMEstimatorTukeyDownWeightsOutlier(t *testing.T) {
	// 19 residuals consistent with small noise, one far off.
	residuals := []float64{
		0.001, -0.002, 0.0015, 0.0, -0.001, 0.002, -0.0005, 0.001, 0.0, -0.0015,
		0.0005, -0.001, 0.002, -0.002, 0.001, 0.0, 0.0015, -0.0005, 0.001,
		0.5,
	}
	weights := make([]float64, len(residuals))
	for i := range weights {
		weights[i] = 1
	}

	robust := NewRobust(len(residuals))
	robust.SetThreshold(0.0025)
	robust.MEstimatorTukey(residuals, weights)

	if weights[len(weights)-1] > 0.01 {
		t.Errorf("outlier weight too high: %v", weights[len(weights)-1])
	}
	for i := 0; i < len(weights)-1; i++ {
		if weights[i] < 0.9 {
			t.Errorf("inlier %d down-weighted: %v", i, weights[i])
		}
	}
}

func TestMEstimatorTukeyPerfectDataKeepsWeightsOne(t *testing.T) {
	residuals := make([]float64, 12)
	weights := make([]float64, 12)

	robust := NewRobust(len(residuals))
	robust.MEstimatorTukey(residuals, weights)

	for i, w := range weights {
		if w != 1 {
			t.Errorf("weight %d: wrong answer: %v, correct answer: 1", i, w)
		}
	}
}

func TestMEstimatorTukeyEmptyInput(t *testing.T) {
	robust := NewRobust(0)
	robust.MEstimatorTukey(nil, nil)
}
