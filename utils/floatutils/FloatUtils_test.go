package floatutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSlice(t *testing.T) {
	max, indices := MaxSlice([]float64{0.1, 0.4, 0.2, 0.4})
	assert.Equal(t, 0.4, max)
	assert.Equal(t, []int{1, 3}, indices)
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	assert.InDeltaSlice(t, []float64{2, 3, 5, 7}, got, 1e-12)

	got = MovingAverage([]float64{1, 2, 3}, 0)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, got, 1e-12)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, Clip(3, 0, 1))
	assert.Equal(t, 0.0, Clip(-3, 0, 1))
	assert.Equal(t, 0.5, Clip(0.5, 0, 1))
}
