// Package stop implements the stop registry of a routing problem: the
// delivery stops, their capacity demands, the depot, and the distance
// matrix between every pair of stops.
//
// Stops are addressed by a stable integer index assigned when the
// Registry is built. Every matrix in the module (distances, pheromone,
// policy weights) is indexed by this index.
package stop

import (
	"errors"
	"fmt"
)

// ErrInfeasibleDemand is returned when a single stop demands more than a
// vehicle can carry. No tour construction can ever place such a stop.
var ErrInfeasibleDemand = errors.New("stop demand exceeds vehicle capacity")

// Demand is the capacity demand of a stop
type Demand struct {
	Weight float64
	Volume float64
	Count  int
}

// Add returns the sum of two demands
func (d Demand) Add(o Demand) Demand {
	return Demand{d.Weight + o.Weight, d.Volume + o.Volume, d.Count + o.Count}
}

// Stop is a single delivery location. Index is assigned by the Registry
// and is only meaningful within that Registry.
type Stop struct {
	ID     int
	Index  int
	X, Y   float64
	Demand Demand
}

func (s Stop) String() string {
	return fmt.Sprintf("Stop(%d) | (%.3f, %.3f) | w=%.2f v=%.2f",
		s.ID, s.X, s.Y, s.Demand.Weight, s.Demand.Volume)
}

// Capacity is the capacity of a single vehicle
type Capacity struct {
	Weight float64
	Volume float64
}

// Fits returns whether a load fits within the capacity
func (c Capacity) Fits(load Demand) bool {
	return load.Weight <= c.Weight && load.Volume <= c.Volume
}

// Validate returns an error if the capacity is not positive
func (c Capacity) Validate() error {
	if c.Weight <= 0 || c.Volume <= 0 {
		return fmt.Errorf("capacity: weight and volume must be positive, "+
			"got weight=%v volume=%v", c.Weight, c.Volume)
	}
	return nil
}

// Utilization returns the fraction of weight and volume capacity a load
// would use
func (c Capacity) Utilization(load Demand) (weight, volume float64) {
	return load.Weight / c.Weight, load.Volume / c.Volume
}
