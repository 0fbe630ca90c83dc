package classify

import (
	"errors"
	"math"
)

// ErrEmptyLogits is returned when there is nothing to normalise.
var ErrEmptyLogits = errors.New("empty logits")

// Softmax writes the probabilities of logits into dst (reallocated when too
// small) and returns it. The maximum is subtracted first so large logits do
// not overflow; sums run in float64.
func Softmax(dst, logits []float32) ([]float32, error) {
	if len(logits) == 0 {
		return nil, ErrEmptyLogits
	}
	if cap(dst) < len(logits) {
		dst = make([]float32, len(logits))
	}
	dst = dst[:len(logits)]

	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxLogit {
			maxLogit = float64(v)
		}
	}

	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - maxLogit)
	}
	for i, v := range logits {
		dst[i] = float32(math.Exp(float64(v)-maxLogit) / sum)
	}
	return dst, nil
}

// ArgMax returns the index of the largest value. Ties go to the lowest
// index; an empty slice gives -1.
func ArgMax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}
