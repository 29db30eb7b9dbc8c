package ops

// negForward returns -x.
//
// Backward pass: d(-x)/dx = -1.
func negForward(x float64) float64 {
	return -x
}

func negDerivative(float64) float64 {
	return -1
}
