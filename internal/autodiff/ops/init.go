package ops

import (
	"math/rand/v2"

	"github.com/born-ml/toygrad/internal/tensor"
)

// FillNormal fills buf with independent standard-normal samples.
func FillNormal(buf *tensor.Buffer, rng *rand.Rand) {
	data := buf.Data()
	for i := range data {
		data[i] = rng.NormFloat64()
	}
}

// FillArange fills buf with start, start+step, start+2*step, ...
func FillArange(buf *tensor.Buffer, start, step float64) {
	data := buf.Data()
	for i := range data {
		data[i] = start + float64(i)*step
	}
}
