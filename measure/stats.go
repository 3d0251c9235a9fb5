package measure

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Confidence is the two-sided confidence level of Summary.Error.
const Confidence = 0.999

// t999 holds two-sided 99.9% critical values of Student's t for 1 to 30 degrees of freedom.
var t999 = [...]float64{
	636.619, 31.599, 12.924, 8.610, 6.869, 5.959, 5.408, 5.041, 4.781, 4.587,
	4.437, 4.318, 4.221, 4.140, 4.073, 4.015, 3.965, 3.922, 3.883, 3.850,
	3.819, 3.792, 3.768, 3.745, 3.725, 3.707, 3.690, 3.674, 3.659, 3.646,
}

// z999 is the normal approximation used past the table.
const z999 = 3.291

type number interface {
	constraints.Integer | constraints.Float
}

func mean[T number](xs []T) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev[T number](xs []T, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := float64(x) - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func minMax[T number](xs []T) (lo, hi T) {
	if len(xs) == 0 {
		return lo, hi
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}

// tCritical returns the two-sided 99.9% critical value for df degrees of freedom.
func tCritical(df int) float64 {
	if df < 1 {
		return math.NaN()
	}
	if df > len(t999) {
		return z999
	}
	return t999[df-1]
}

// marginOfError is the half width of the confidence interval around the mean of n samples
// with standard deviation s. A single sample has no spread to estimate, so its margin is 0.
func marginOfError(s float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return tCritical(n-1) * s / math.Sqrt(float64(n))
}
