package matutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNormalizeRow(t *testing.T) {
	row := []float64{5, 1, -2, 3}
	NormalizeRow(row, 0)
	assert.Equal(t, []float64{0, 0.25, 0, 0.75}, row)

	empty := []float64{0, 0, 0, 0}
	NormalizeRow(empty, 2)
	third := 1.0 / 3
	assert.Equal(t, []float64{third, third, 0, third}, empty)

	outside := []float64{0, 0}
	NormalizeRow(outside, 5)
	assert.Equal(t, []float64{0.5, 0.5}, outside)
}

func TestRowStochastic(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0, 1, 0.5, 0.5})
	require.NoError(t, RowStochastic(m, 1e-12))

	m.Set(1, 0, 0.6)
	assert.Error(t, RowStochastic(m, 1e-12))
	assert.NoError(t, RowStochastic(m, 0.2))

	m.Set(0, 0, math.NaN())
	assert.Error(t, RowStochastic(m, 1))

	m = mat.NewDense(1, 2, []float64{-0.5, 1.5})
	assert.Error(t, RowStochastic(m, 1))
}

func TestFormat(t *testing.T) {
	assert.Contains(t, Format(mat.NewDense(1, 2, []float64{0.25, 0.75})),
		"0.75")
}
