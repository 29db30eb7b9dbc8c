package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// NoAxis selects every axis of a reduction.
const NoAxis = -1

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that the shape has at least one dimension and that every
// dimension is positive.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return &ShapeError{Op: "shape", Details: "rank must be at least 1"}
	}
	for i, dim := range s {
		if dim <= 0 {
			return &ShapeError{
				Op:      "shape",
				Shapes:  []Shape{s.Clone()},
				Details: fmt.Sprintf("invalid dimension at index %d: %d (must be > 0)", i, dim),
			}
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as [d0, d1, ...].
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// ParseShape parses a comma separated list of dimensions such as "2,3,4".
func ParseShape(text string) (Shape, error) {
	fields := strings.Split(text, ",")
	shape := make(Shape, 0, len(fields))
	for _, f := range fields {
		d, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, &ShapeError{Op: "parse", Details: fmt.Sprintf("invalid dimension %q", f)}
		}
		shape = append(shape, d)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return shape, nil
}

// InferBroadcast implements NumPy-style broadcasting rules.
//
// Shapes are compared from the trailing dimension. A pair is compatible if
// the sizes are equal or one of them is 1; missing leading dimensions count
// as 1.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5)
//	(5)    + (3, 5) → (3, 5)
//	(3, 4) + (3, 5) → ShapeError
func InferBroadcast(a, b Shape) (Shape, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)

	for i := 0; i < maxLen; i++ {
		aDim := dimFromRight(a, i)
		bDim := dimFromRight(b, i)

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
		case bDim == 1:
			result[maxLen-1-i] = aDim
		default:
			return nil, &ShapeError{
				Op:     "broadcast",
				Shapes: []Shape{a.Clone(), b.Clone()},
				Details: fmt.Sprintf("not broadcast-compatible (dimension %d: %d vs %d)",
					maxLen-1-i, aDim, bDim),
			}
		}
	}

	return result, nil
}

func dimFromRight(s Shape, i int) int {
	idx := len(s) - 1 - i
	if idx < 0 {
		return 1
	}
	return s[idx]
}

// ValidateAxis checks that axis lies in [0, rank). NoAxis is accepted only
// when allowAll is set.
func ValidateAxis(s Shape, axis int, allowAll bool) error {
	if axis == NoAxis {
		if allowAll {
			return nil
		}
		return &ShapeError{Op: "axis", Shapes: []Shape{s.Clone()}, Details: "axis is required"}
	}
	if axis < 0 || axis >= len(s) {
		return &ShapeError{
			Op:      "axis",
			Shapes:  []Shape{s.Clone()},
			Details: fmt.Sprintf("axis %d out of range [0, %d)", axis, len(s)),
		}
	}
	return nil
}

// InferReduce returns the shape left after reducing axis, which is dropped.
// NoAxis reduces every axis. A result that would have rank 0 is Shape{1}.
func InferReduce(s Shape, axis int) (Shape, error) {
	if err := ValidateAxis(s, axis, true); err != nil {
		return nil, err
	}
	if axis == NoAxis || len(s) == 1 {
		return Shape{1}, nil
	}

	out := make(Shape, 0, len(s)-1)
	out = append(out, s[:axis]...)
	out = append(out, s[axis+1:]...)
	return out, nil
}

// AxisExtent splits s around axis into the number of outer slices, the
// reduced length and the inner stride, so that element (o, k, i) sits at
// flat index (o*n+k)*inner+i. NoAxis treats the whole buffer as one slice.
func AxisExtent(s Shape, axis int) (outer, n, inner int) {
	if axis == NoAxis {
		return 1, s.NumElements(), 1
	}
	outer, inner = 1, 1
	for _, d := range s[:axis] {
		outer *= d
	}
	for _, d := range s[axis+1:] {
		inner *= d
	}
	return outer, s[axis], inner
}
