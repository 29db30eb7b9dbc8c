package ops

import "math"

// logForward returns the natural logarithm. Non-positive inputs give -Inf
// or NaN, as math.Log does.
//
// Backward pass: d(log(x))/dx = 1/x.
func logForward(x float64) float64 {
	return math.Log(x)
}

func logDerivative(x float64) float64 {
	return 1 / x
}
