package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"
)

// GradCheck compares the analytic gradient of one leaf with a central
// finite-difference estimate.
type GradCheck struct {
	Leaf       TensorID
	Analytic   []float64
	Numeric    []float64
	MaxAbsDiff float64
}

// CheckGradients differentiates the sum of out's elements with respect to
// each leaf, once by Backward and once numerically with step eps. Leaves are
// perturbed with SetValues and restored before returning, and out is left
// evaluated at the original values.
func CheckGradients(out *Tensor, leaves []*Tensor, eps float64) ([]GradCheck, error) {
	if err := out.Forward(); err != nil {
		return nil, err
	}
	if err := out.Backward(); err != nil {
		return nil, err
	}

	analytic := make([][]float64, len(leaves))
	for i, leaf := range leaves {
		g, err := leaf.Grad()
		if err != nil {
			return nil, fmt.Errorf("gradcheck: %w", err)
		}
		if analytic[i], err = g.Values(); err != nil {
			return nil, fmt.Errorf("gradcheck: %w", err)
		}
	}

	eval := func() (float64, error) {
		if err := out.Forward(); err != nil {
			return 0, err
		}
		v, err := out.Values()
		if err != nil {
			return 0, err
		}
		return floats.Sum(v), nil
	}

	results := make([]GradCheck, len(leaves))
	for i, leaf := range leaves {
		orig, err := leaf.Values()
		if err != nil {
			return nil, fmt.Errorf("gradcheck: %w", err)
		}
		numeric := make([]float64, len(orig))
		shifted := append([]float64(nil), orig...)

		for j := range orig {
			shifted[j] = orig[j] + eps
			if err := leaf.SetValues(shifted); err != nil {
				return nil, fmt.Errorf("gradcheck: %w", err)
			}
			plus, err := eval()
			if err != nil {
				return nil, fmt.Errorf("gradcheck: %w", err)
			}

			shifted[j] = orig[j] - eps
			if err := leaf.SetValues(shifted); err != nil {
				return nil, fmt.Errorf("gradcheck: %w", err)
			}
			minus, err := eval()
			if err != nil {
				return nil, fmt.Errorf("gradcheck: %w", err)
			}

			numeric[j] = (plus - minus) / (2 * eps)
			shifted[j] = orig[j]
		}
		if err := leaf.SetValues(orig); err != nil {
			return nil, fmt.Errorf("gradcheck: %w", err)
		}

		results[i] = GradCheck{
			Leaf:       leaf.id,
			Analytic:   analytic[i],
			Numeric:    numeric,
			MaxAbsDiff: floats.Distance(analytic[i], numeric, math.Inf(1)),
		}
		klog.V(2).InfoS("Checked gradient", "leaf", leaf.id, "maxAbsDiff", results[i].MaxAbsDiff)
	}

	if err := out.Forward(); err != nil {
		return nil, err
	}
	return results, nil
}
