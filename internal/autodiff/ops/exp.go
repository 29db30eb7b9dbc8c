package ops

import "math"

// expForward returns e^x.
//
// Backward pass: d(exp(x))/dx = exp(x), recomputed from the input.
func expForward(x float64) float64 {
	return math.Exp(x)
}

func expDerivative(x float64) float64 {
	return math.Exp(x)
}
