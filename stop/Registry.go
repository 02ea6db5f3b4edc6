package stop

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Registry holds the stops of a problem instance and the symmetric
// distance matrix between them. A Registry is read-only once built and
// may be shared by any number of solvers.
type Registry struct {
	stops []Stop
	depot int
	byID  map[int]int
	dist  *mat.SymDense
}

// NewRegistry builds a Registry over stops, computing Euclidean
// distances between the coordinates of each pair of stops. The stop with
// identifier depotID is the depot.
func NewRegistry(stops []Stop, depotID int) (*Registry, error) {
	n := len(stops)
	dist := mat.NewSymDense(max(n, 1), nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(stops[i].X-stops[j].X, stops[i].Y-stops[j].Y)
			dist.SetSym(i, j, d)
		}
	}
	return NewRegistryWithDistances(stops, depotID, dist)
}

// NewRegistryWithDistances builds a Registry over stops using a
// provided symmetric distance matrix, indexed in the order of stops.
func NewRegistryWithDistances(stops []Stop, depotID int,
	dist mat.Symmetric) (*Registry, error) {
	n := len(stops)
	if n < 2 {
		return nil, fmt.Errorf("newRegistry: need a depot and at least one "+
			"stop, got %d stops", n)
	}
	if dist.Symmetric() != n {
		return nil, fmt.Errorf("newRegistry: distance matrix has %d rows, "+
			"want %d", dist.Symmetric(), n)
	}

	r := &Registry{
		stops: make([]Stop, n),
		depot: -1,
		byID:  make(map[int]int, n),
		dist:  mat.NewSymDense(n, nil),
	}

	for i, s := range stops {
		if _, ok := r.byID[s.ID]; ok {
			return nil, fmt.Errorf("newRegistry: duplicate stop id %d", s.ID)
		}
		if s.Demand.Weight < 0 || s.Demand.Volume < 0 || s.Demand.Count < 0 {
			return nil, fmt.Errorf("newRegistry: stop %d has negative demand",
				s.ID)
		}
		s.Index = i
		r.stops[i] = s
		r.byID[s.ID] = i

		if s.ID == depotID {
			if s.Demand.Weight != 0 || s.Demand.Volume != 0 {
				return nil, fmt.Errorf("newRegistry: depot %d must have zero "+
					"demand", s.ID)
			}
			r.depot = i
		}
	}
	if r.depot < 0 {
		return nil, fmt.Errorf("newRegistry: depot %d not found", depotID)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := dist.At(i, j)
			if d < 0 || math.IsNaN(d) {
				return nil, fmt.Errorf("newRegistry: invalid distance %v "+
					"between stops %d and %d", d, r.stops[i].ID, r.stops[j].ID)
			}
			if i == j {
				d = 0
			}
			r.dist.SetSym(i, j, d)
		}
	}
	return r, nil
}

// Len returns the number of stops, including the depot
func (r *Registry) Len() int {
	return len(r.stops)
}

// Stops returns a copy of all stops in index order
func (r *Registry) Stops() []Stop {
	out := make([]Stop, len(r.stops))
	copy(out, r.stops)
	return out
}

// Stop returns the stop at index i
func (r *Registry) Stop(i int) Stop {
	return r.stops[i]
}

// Depot returns the depot stop
func (r *Registry) Depot() Stop {
	return r.stops[r.depot]
}

// DepotIndex returns the index of the depot
func (r *Registry) DepotIndex() int {
	return r.depot
}

// Customers returns the indices of all non-depot stops in index order
func (r *Registry) Customers() []int {
	out := make([]int, 0, len(r.stops)-1)
	for i := range r.stops {
		if i != r.depot {
			out = append(out, i)
		}
	}
	return out
}

// IndexOf returns the index of the stop with identifier id
func (r *Registry) IndexOf(id int) (int, bool) {
	i, ok := r.byID[id]
	return i, ok
}

// IDs returns the stop identifiers in index order
func (r *Registry) IDs() []int {
	ids := make([]int, len(r.stops))
	for i, s := range r.stops {
		ids[i] = s.ID
	}
	return ids
}

// Distance returns the distance between the stops at indices i and j
func (r *Registry) Distance(i, j int) float64 {
	return r.dist.At(i, j)
}

// DistanceByID returns the distance between the stops with identifiers
// a and b
func (r *Registry) DistanceByID(a, b int) (float64, error) {
	i, ok := r.byID[a]
	if !ok {
		return 0, fmt.Errorf("distanceByID: unknown stop %d", a)
	}
	j, ok := r.byID[b]
	if !ok {
		return 0, fmt.Errorf("distanceByID: unknown stop %d", b)
	}
	return r.dist.At(i, j), nil
}

// Demand returns the demand of the stop at index i
func (r *Registry) Demand(i int) Demand {
	return r.stops[i].Demand
}

// DemandByID returns the demand of the stop with identifier id
func (r *Registry) DemandByID(id int) (Demand, error) {
	i, ok := r.byID[id]
	if !ok {
		return Demand{}, fmt.Errorf("demandByID: unknown stop %d", id)
	}
	return r.stops[i].Demand, nil
}

// Distances returns a read-only view of the distance matrix
func (r *Registry) Distances() mat.Symmetric {
	return r.dist
}

// MaxDistance returns the largest distance between any two stops
func (r *Registry) MaxDistance() float64 {
	var m float64
	for i := range r.stops {
		for j := i + 1; j < len(r.stops); j++ {
			m = math.Max(m, r.dist.At(i, j))
		}
	}
	return m
}

// CostCeiling returns an upper bound on the total distance of any
// feasible solution: every stop served by its own tour with every edge
// as long as the longest edge in the registry.
func (r *Registry) CostCeiling() float64 {
	return 2 * float64(len(r.stops)-1) * r.MaxDistance()
}

// CheckCapacity returns an error wrapping ErrInfeasibleDemand if any
// stop demands more than capacity on its own.
func (r *Registry) CheckCapacity(c Capacity) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, s := range r.stops {
		if !c.Fits(s.Demand) {
			return fmt.Errorf("checkCapacity: stop %d (w=%v v=%v) with "+
				"capacity (w=%v v=%v): %w", s.ID, s.Demand.Weight,
				s.Demand.Volume, c.Weight, c.Volume, ErrInfeasibleDemand)
		}
	}
	return nil
}
