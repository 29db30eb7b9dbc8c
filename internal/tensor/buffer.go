package tensor

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Buffer is contiguous row-major float64 storage for tensor values or
// gradients. Its length always equals the NumElements of the owning shape.
//
// Accumulate is safe for concurrent use; every other method expects the
// caller to own the buffer exclusively.
type Buffer struct {
	data []float64
	mu   sync.Mutex // Serializes Accumulate
}

// NewBuffer allocates a zero-filled buffer of n elements.
func NewBuffer(n int) *Buffer {
	return &Buffer{data: make([]float64, n)}
}

// BufferFrom copies data into a new buffer.
func BufferFrom(data []float64) *Buffer {
	b := NewBuffer(len(data))
	copy(b.data, data)
	return b
}

// Ones allocates a buffer of n ones.
func Ones(n int) *Buffer {
	b := NewBuffer(n)
	b.Fill(1)
	return b
}

// Len returns the number of elements.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Data returns the underlying slice.
// WARNING: Direct access to the storage. Callers must not resize it.
func (b *Buffer) Data() []float64 {
	return b.data
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	return BufferFrom(b.data)
}

// Fill sets every element to v.
func (b *Buffer) Fill(v float64) {
	for i := range b.data {
		b.data[i] = v
	}
}

// Zero sets every element to 0.
func (b *Buffer) Zero() {
	b.Fill(0)
}

// CopyFrom overwrites the buffer with src. Panics on length mismatch.
func (b *Buffer) CopyFrom(src []float64) {
	if len(src) != len(b.data) {
		panic(fmt.Sprintf("buffer: copy length %d does not match %d", len(src), len(b.data)))
	}
	copy(b.data, src)
}

// Accumulate adds src element-wise into the buffer under the buffer lock.
func (b *Buffer) Accumulate(src *Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	floats.Add(b.data, src.data)
}

// Sum returns the sum of all elements.
func (b *Buffer) Sum() float64 {
	return floats.Sum(b.data)
}

// Equal reports whether both buffers hold bit-identical values.
func (b *Buffer) Equal(other *Buffer) bool {
	return floats.Equal(b.data, other.data)
}
