package mbt

import (
	"math"
	"sort"
)

// Threshold below which trigonometric ratios switch to their series expansion.
const angleEps = 1e-9

// sinc computes sin(x)/x, continuous at x = 0.
func sinc(x float64) float64 {
	if math.Abs(x) < angleEps {
		return 1.0 - x*x/6.0
	}
	return math.Sin(x) / x
}

// mcosc computes (1-cos(x))/x^2, continuous at x = 0.
func mcosc(x float64) float64 {
	if math.Abs(x) < angleEps {
		return 0.5 - x*x/24.0
	}
	return (1.0 - math.Cos(x)) / (x * x)
}

// msinc computes (1-sin(x)/x)/x^2, continuous at x = 0.
func msinc(x float64) float64 {
	if math.Abs(x) < angleEps {
		return 1.0/6.0 - x*x/120.0
	}
	return (1.0 - math.Sin(x)/x) / (x * x)
}

// median returns the median of values. The input slice is reordered.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sort.Float64s(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return 0.5 * (values[n/2-1] + values[n/2])
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
