// Package matutils implements utility functions for working with the
// row-stochastic matrices of transition probabilities
package matutils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Format formats a matrix for printing
func Format(X mat.Matrix) string {
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	return fmt.Sprintf("%v", fa)
}

// NormalizeRow scales row in place to sum to one. The entry at index
// diag is set to zero and negative entries are clipped to zero. A row
// with no mass becomes uniform over every entry except diag. If diag is
// out of range, no entry is excluded.
func NormalizeRow(row []float64, diag int) {
	others := len(row)
	for j, v := range row {
		if j == diag {
			row[j] = 0
			others--
		} else if v < 0 {
			row[j] = 0
		}
	}

	if sum := floats.Sum(row); sum > 0 {
		floats.Scale(1/sum, row)
		return
	}
	for j := range row {
		if j != diag {
			row[j] = 1 / float64(others)
		}
	}
}

// RowStochastic returns an error if any row of m has a negative or NaN
// entry, or does not sum to one within tol
func RowStochastic(m mat.Matrix, tol float64) error {
	r, c := m.Dims()
	row := make([]float64, c)

	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		for j, v := range row {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("row %d column %d has entry %v", i, j, v)
			}
		}
		if sum := floats.Sum(row); math.Abs(sum-1) > tol {
			return fmt.Errorf("row %d sums to %v", i, sum)
		}
	}
	return nil
}
