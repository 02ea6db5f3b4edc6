// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"
)

// Clip clips a floating point to within a minimum and maximum value.
func Clip(value, min, max float64) float64 {
	return math.Max(math.Min(value, max), min)
}

// MaxSlice gets the maximum value and the indices of all entries equal
// to the maximum in a slice of float64. It panics on an empty slice.
func MaxSlice(values []float64) (max float64, indices []int) {
	if len(values) == 0 {
		panic("maxSlice: empty slice")
	}
	max, indices = values[0], []int{0}

	for i := 1; i < len(values); i++ {
		if values[i] > max {
			max = values[i]
			indices = []int{i}
		} else if values[i] == max {
			indices = append(indices, i)
		}
	}
	return
}

// MovingAverage returns the trailing moving average of values over a
// window. Entry i averages values[max(0, i-window+1)..i], so the output
// has the same length as the input and the first window-1 entries
// average over fewer points.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}
