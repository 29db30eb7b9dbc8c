package ops

// reluForward returns max(0, x).
//
// Backward pass: d(ReLU(x))/dx = 1 if x > 0, else 0. The kink at 0 takes
// the zero subgradient.
func reluForward(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func reluDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}
