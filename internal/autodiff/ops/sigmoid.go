package ops

import "math"

// sigmoidForward returns 1 / (1 + e^-x).
//
// Backward pass: d(σ(x))/dx = σ(x) * (1 - σ(x)).
func sigmoidForward(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func sigmoidDerivative(x float64) float64 {
	s := sigmoidForward(x)
	return s * (1 - s)
}
