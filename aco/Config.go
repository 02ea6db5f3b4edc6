// Package aco implements Ant Colony Optimization for the capacitated
// vehicle routing problem. A Colony runs a fixed number of iterations
// of Ants over a stop.Registry and returns the best solution found
// together with the row-normalized pheromone matrix, which may be used
// to seed a learned policy.
package aco

import (
	"fmt"

	"github.com/samuelfneumann/vrprl/stop"
)

// Config configures a Colony
type Config struct {
	// Iterations is the number of colony iterations to run
	Iterations int

	// Ants is the number of ants constructing a solution per iteration
	Ants int

	// Alpha and Beta weigh the pheromone and inverse distance when
	// computing the attraction of a candidate stop
	Alpha float64
	Beta  float64

	// Evaporation is the fraction of pheromone lost per iteration
	Evaporation float64

	// PheromoneConstant is the amount of pheromone an ant deposits on
	// an edge, divided by the length of the edge
	PheromoneConstant float64

	// InitialPheromone is the uniform starting pheromone of every edge
	InitialPheromone float64

	Capacity stop.Capacity
	Seed     uint64

	// LogEvery logs the best distance every LogEvery iterations. Zero
	// disables logging.
	LogEvery int
}

// DefaultConfig returns a Config with commonly used ACO settings and
// the argument vehicle capacity
func DefaultConfig(capacity stop.Capacity) Config {
	return Config{
		Iterations:        50,
		Ants:              10,
		Alpha:             1.0,
		Beta:              2.0,
		Evaporation:       0.1,
		PheromoneConstant: 1.0,
		InitialPheromone:  1.0,
		Capacity:          capacity,
	}
}

// Validate returns an error describing the first invalid setting
func (c Config) Validate() error {
	switch {
	case c.Iterations < 1:
		return fmt.Errorf("aco config: iterations must be positive, got %d",
			c.Iterations)
	case c.Ants < 1:
		return fmt.Errorf("aco config: ants must be positive, got %d", c.Ants)
	case c.Alpha < 0 || c.Beta < 0:
		return fmt.Errorf("aco config: alpha and beta must be non-negative, "+
			"got alpha=%v beta=%v", c.Alpha, c.Beta)
	case c.Evaporation <= 0 || c.Evaporation > 1:
		return fmt.Errorf("aco config: evaporation must be in (0, 1], got %v",
			c.Evaporation)
	case c.PheromoneConstant <= 0:
		return fmt.Errorf("aco config: pheromone constant must be positive, "+
			"got %v", c.PheromoneConstant)
	case c.InitialPheromone <= 0:
		return fmt.Errorf("aco config: initial pheromone must be positive, "+
			"got %v", c.InitialPheromone)
	}
	if err := c.Capacity.Validate(); err != nil {
		return fmt.Errorf("aco config: %w", err)
	}
	return nil
}
