package aco

import (
	"fmt"
	"log"
	"math"

	"github.com/samuelfneumann/vrprl/metrics"
	"github.com/samuelfneumann/vrprl/stop"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Result is the outcome of a colony run
type Result struct {
	BestDistance float64
	BestTours    []stop.Tour

	// Probabilities is the row-stochastic normalization of the final
	// pheromone matrix
	Probabilities *mat.Dense

	// History holds the best distance found after each iteration
	History []float64
}

// Colony coordinates iterations of Ants over a shared pheromone matrix
type Colony struct {
	cfg       Config
	reg       *stop.Registry
	src       rand.Source
	pheromone *mat.Dense
}

// New returns a new Colony. An error wrapping stop.ErrInfeasibleDemand
// is returned if any stop cannot fit in a vehicle on its own.
func New(reg *stop.Registry, cfg Config) (*Colony, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new colony: %w", err)
	}
	if err := reg.CheckCapacity(cfg.Capacity); err != nil {
		return nil, fmt.Errorf("new colony: %w", err)
	}

	return &Colony{
		cfg:       cfg,
		reg:       reg,
		src:       rand.NewSource(cfg.Seed),
		pheromone: NewPheromone(reg.Len(), cfg.InitialPheromone),
	}, nil
}

// Pheromone returns the current (unnormalized) pheromone matrix
func (c *Colony) Pheromone() mat.Matrix {
	return c.pheromone
}

// Run runs the configured number of iterations. On the first iteration
// ants choose stops uniformly at random since the pheromone carries no
// information yet. After every iteration the pheromone evaporates and
// every ant deposits pheromone on the edges it travelled.
func (c *Colony) Run() (Result, error) {
	res := Result{
		BestDistance: math.Inf(1),
		History:      make([]float64, 0, c.cfg.Iterations),
	}

	for it := 0; it < c.cfg.Iterations; it++ {
		ants := make([]*Ant, c.cfg.Ants)
		for k := range ants {
			ants[k] = NewAnt(c.reg, c.cfg.Capacity, c.pheromone, c.cfg.Alpha,
				c.cfg.Beta, it == 0, c.src)
			if err := ants[k].Run(); err != nil {
				return Result{}, fmt.Errorf("run: iteration %d ant %d: %w",
					it, k, err)
			}

			if d := ants[k].Distance(); d < res.BestDistance {
				res.BestDistance = d
				res.BestTours = ants[k].Tours()
			}
		}

		Evaporate(c.pheromone, c.cfg.Evaporation)
		for _, ant := range ants {
			Deposit(c.pheromone, c.reg, ant.Tours(), c.cfg.PheromoneConstant)
		}

		res.History = append(res.History, res.BestDistance)
		metrics.ACOIterations.Inc()
		metrics.ACOBestDistance.Set(res.BestDistance)

		if c.cfg.LogEvery > 0 && (it+1)%c.cfg.LogEvery == 0 {
			log.Printf("aco: iteration=%d best=%.3f tours=%d", it+1,
				res.BestDistance, len(res.BestTours))
		}
	}

	res.Probabilities = Normalize(c.pheromone)
	return res, nil
}
