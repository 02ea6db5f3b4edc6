package aco

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/vrprl/stop"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// epsilon is added to every attraction when all candidates have zero
// attraction so that the roulette wheel is never empty
const epsilon = 1e-12

// Ant constructs a single solution: a set of capacity-bounded tours
// which together visit every stop of a Registry once.
type Ant struct {
	reg       *stop.Registry
	capacity  stop.Capacity
	pheromone mat.Matrix
	alpha     float64
	beta      float64

	// uniform selects candidates uniformly at random, ignoring the
	// pheromone and distances
	uniform bool

	src rand.Source
	rng *rand.Rand

	tours    []stop.Tour
	distance float64
}

// NewAnt returns a new Ant. The pheromone matrix is only read.
func NewAnt(reg *stop.Registry, capacity stop.Capacity, pheromone mat.Matrix,
	alpha, beta float64, uniform bool, src rand.Source) *Ant {
	return &Ant{
		reg:       reg,
		capacity:  capacity,
		pheromone: pheromone,
		alpha:     alpha,
		beta:      beta,
		uniform:   uniform,
		src:       src,
		rng:       rand.New(src),
	}
}

// Tours returns the tours constructed by the last call to Run
func (a *Ant) Tours() []stop.Tour {
	return a.tours
}

// Distance returns the total distance of the tours constructed by the
// last call to Run
func (a *Ant) Distance() float64 {
	return a.distance
}

// Run constructs a full solution. Each step the ant moves to one of the
// remaining stops which still fits in the vehicle. When no remaining
// stop fits, the current tour is closed at the depot and a new tour is
// started with an empty vehicle.
func (a *Ant) Run() error {
	a.tours = nil
	a.distance = 0

	depot := a.reg.DepotIndex()
	remaining := a.reg.Customers()
	current := depot
	tour := stop.Tour{depot}
	var load stop.Demand

	for len(remaining) > 0 {
		feasible := a.feasible(remaining, load)

		if len(feasible) == 0 {
			if current == depot {
				s := a.reg.Stop(remaining[0])
				return fmt.Errorf("run: stop %d: %w", s.ID,
					stop.ErrInfeasibleDemand)
			}
			a.closeTour(tour, current)
			current, tour, load = depot, stop.Tour{depot}, stop.Demand{}
			continue
		}

		next := a.choose(current, feasible)
		a.distance += a.reg.Distance(current, next)
		tour = append(tour, next)
		load = load.Add(a.reg.Demand(next))
		current = next
		remaining = without(remaining, next)
	}
	a.closeTour(tour, current)

	return nil
}

// closeTour returns from current to the depot and records the tour
func (a *Ant) closeTour(tour stop.Tour, current int) {
	depot := a.reg.DepotIndex()
	a.distance += a.reg.Distance(current, depot)
	a.tours = append(a.tours, append(tour, depot))
}

// feasible returns the remaining stops which fit on top of load
func (a *Ant) feasible(remaining []int, load stop.Demand) []int {
	out := make([]int, 0, len(remaining))
	for _, s := range remaining {
		if a.capacity.Fits(load.Add(a.reg.Demand(s))) {
			out = append(out, s)
		}
	}
	return out
}

// choose selects the next stop among candidates by roulette wheel
// selection proportional to attraction
func (a *Ant) choose(current int, candidates []int) int {
	if len(candidates) == 1 {
		return candidates[0]
	}
	if a.uniform {
		return candidates[a.rng.Intn(len(candidates))]
	}

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		weights[i] = a.attraction(current, c)
		total += weights[i]
	}

	switch {
	case math.IsInf(total, 1):
		// Overflowed attractions dominate every finite one
		for i := range weights {
			if math.IsInf(weights[i], 1) {
				weights[i] = 1
			} else {
				weights[i] = 0
			}
		}
	case total == 0:
		for i := range weights {
			weights[i] += epsilon
		}
	}

	wheel := distuv.NewCategorical(weights, a.src)
	return candidates[int(wheel.Rand())]
}

// attraction returns pheromone^alpha * (1/distance)^beta for the edge
// from i to j. Edges of zero length have zero attraction.
func (a *Ant) attraction(i, j int) float64 {
	d := a.reg.Distance(i, j)
	if d == 0 {
		return 0
	}
	return math.Pow(a.pheromone.At(i, j), a.alpha) * math.Pow(1/d, a.beta)
}

// without returns a new slice holding the elements of s except v
func without(s []int, v int) []int {
	out := make([]int, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
