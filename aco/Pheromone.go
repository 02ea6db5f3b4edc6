package aco

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/utils/matutils"
)

// NewPheromone returns an n x n pheromone matrix with every entry set
// to tau0
func NewPheromone(n int, tau0 float64) *mat.Dense {
	data := make([]float64, n*n)
	for i := range data {
		data[i] = tau0
	}
	return mat.NewDense(n, n, data)
}

// Evaporate multiplies every pheromone entry by (1 - rho)
func Evaporate(tau *mat.Dense, rho float64) {
	tau.Scale(1-rho, tau)
}

// Deposit adds q / d(i, j) to the pheromone of every directed edge
// (i, j) traversed by the tours. Edges of zero length receive nothing.
func Deposit(tau *mat.Dense, reg *stop.Registry, tours []stop.Tour, q float64) {
	for _, t := range tours {
		for k := 1; k < len(t); k++ {
			i, j := t[k-1], t[k]
			if d := reg.Distance(i, j); d > 0 {
				tau.Set(i, j, tau.At(i, j)+q/d)
			}
		}
	}
}

// Normalize returns a row-stochastic copy of m with a zero diagonal.
// Each row i holds the probability of moving from stop i to each other
// stop. A row with no mass becomes uniform over the other stops.
func Normalize(m mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	out := mat.DenseCopyOf(m)
	for i := 0; i < r; i++ {
		matutils.NormalizeRow(out.RawRowView(i), i)
	}
	return out
}

// Heuristic returns the row-normalized inverse distance matrix of a
// Registry. It is the probability matrix of a colony that trusts only
// distances, and may seed a policy without running a colony.
func Heuristic(reg *stop.Registry) *mat.Dense {
	dist := reg.Distances()
	n := dist.Symmetric()
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if d := dist.At(i, j); i != j && d > 0 {
				m.Set(i, j, 1/d)
			}
		}
	}
	return Normalize(m)
}
