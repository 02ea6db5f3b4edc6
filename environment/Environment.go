// Package environment implements the routing MDP: an episode builds a
// set of tours one stop at a time, tracking the load of the current
// vehicle and returning it to the depot when it is full or when every
// stop has been served.
//
// States are stop indices of a stop.Registry. The reward of moving
// between two stops is the negative distance between them, so that
// maximizing return minimizes the total distance travelled.
package environment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/timestep"
)

var (
	// ErrIllegalAction is returned when stepping with an action which
	// is not legal in the current state
	ErrIllegalAction = errors.New("illegal action")

	// ErrEpisodeDone is returned when stepping after the episode ended
	ErrEpisodeDone = errors.New("episode is done")
)

// Phase is the phase of an episode
type Phase int

const (
	AtDepot Phase = iota
	AtStop
	Done
)

func (p Phase) String() string {
	switch p {
	case AtDepot:
		return "AtDepot"
	case AtStop:
		return "AtStop"
	default:
		return "Done"
	}
}

// Candidate is a stop which may legally be visited next. Weight and
// Volume are the fractions of vehicle capacity used after visiting it.
type Candidate struct {
	Stop     int
	Distance float64
	Weight   float64
	Volume   float64
}

// Legal describes the legal actions of a state
type Legal struct {
	// Kind is the kind of every legal action
	Kind Kind

	// Targets are the legal next stops: the fitting remaining stops
	// for MoveToStop, the depot for the return kinds, and nothing once
	// the episode is done
	Targets []int

	// ByDistance ranks the MoveToStop targets nearest first
	ByDistance []Candidate

	// ByUtilization ranks the MoveToStop targets fullest vehicle first
	ByUtilization []Candidate

	// HubVisits is the number of returns to the depot so far
	HubVisits int
}

// Contains returns whether a is one of the legal actions
func (l Legal) Contains(a Action) bool {
	if a.Kind != l.Kind {
		return false
	}
	for _, t := range l.Targets {
		if t == a.Target {
			return true
		}
	}
	return false
}

// Environment is the routing MDP over a stop.Registry
type Environment struct {
	reg      *stop.Registry
	capacity stop.Capacity

	current   int
	phase     Phase
	remaining []int
	load      stop.Demand
	tour      stop.Tour
	tours     []stop.Tour
	cost      float64
	hubVisits int

	last timestep.TimeStep
}

// New returns a new Environment and its first TimeStep. An error
// wrapping stop.ErrInfeasibleDemand is returned if some stop can never
// fit in a vehicle.
func New(reg *stop.Registry, capacity stop.Capacity) (*Environment,
	timestep.TimeStep, error) {
	if err := reg.CheckCapacity(capacity); err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("new environment: %w", err)
	}

	e := &Environment{reg: reg, capacity: capacity}
	return e, e.Reset(), nil
}

// Reset starts a new episode at the depot with every stop remaining
func (e *Environment) Reset() timestep.TimeStep {
	depot := e.reg.DepotIndex()

	e.current = depot
	e.phase = AtDepot
	e.remaining = e.reg.Customers()
	e.load = stop.Demand{}
	e.tour = stop.Tour{depot}
	e.tours = nil
	e.cost = 0
	e.hubVisits = 0

	e.last = timestep.New(timestep.First, 0, 1, depot, 0)
	return e.last
}

// LegalActions computes the legal actions of the current state. It
// does not change the state of the Environment.
func (e *Environment) LegalActions() Legal {
	legal := Legal{HubVisits: e.hubVisits}
	depot := e.reg.DepotIndex()

	if e.phase == Done {
		legal.Kind = ReturnFinal
		return legal
	}

	var cands []Candidate
	for _, s := range e.remaining {
		next := e.load.Add(e.reg.Demand(s))
		if !e.capacity.Fits(next) {
			continue
		}
		w, v := e.capacity.Utilization(next)
		cands = append(cands, Candidate{
			Stop:     s,
			Distance: e.reg.Distance(e.current, s),
			Weight:   w,
			Volume:   v,
		})
	}

	switch {
	case len(cands) > 0:
		legal.Kind = MoveToStop
	case len(e.remaining) == 0:
		legal.Kind = ReturnFinal
		legal.Targets = []int{depot}
		return legal
	default:
		legal.Kind = ReturnForcedFull
		legal.Targets = []int{depot}
		return legal
	}

	legal.Targets = make([]int, len(cands))
	for i, c := range cands {
		legal.Targets[i] = c.Stop
	}

	legal.ByDistance = append([]Candidate(nil), cands...)
	sort.SliceStable(legal.ByDistance, func(i, j int) bool {
		a, b := legal.ByDistance[i], legal.ByDistance[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Stop < b.Stop
	})

	legal.ByUtilization = append([]Candidate(nil), cands...)
	sort.SliceStable(legal.ByUtilization, func(i, j int) bool {
		a, b := legal.ByUtilization[i], legal.ByUtilization[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return a.Stop < b.Stop
	})

	return legal
}

// Step takes an action in the Environment and returns the resulting
// TimeStep and whether the episode is done. The action must be one of
// the actions returned by LegalActions.
func (e *Environment) Step(a Action) (timestep.TimeStep, bool, error) {
	if e.phase == Done {
		return e.last, true, fmt.Errorf("step: %v: %w", a, ErrEpisodeDone)
	}
	legal := e.LegalActions()
	if !legal.Contains(a) {
		return e.last, false, fmt.Errorf("step: %v with legal kind %v and "+
			"targets %v: %w", a, legal.Kind, legal.Targets, ErrIllegalAction)
	}

	d := e.reg.Distance(e.current, a.Target)
	e.cost += d

	switch a.Kind {
	case MoveToStop:
		e.load = e.load.Add(e.reg.Demand(a.Target))
		e.remaining = without(e.remaining, a.Target)
		e.tour = append(e.tour, a.Target)
		e.current = a.Target
		e.phase = AtStop

	case ReturnForcedFull, ReturnFinal:
		e.closeTour()
		e.phase = AtDepot
		if a.Kind == ReturnFinal {
			e.phase = Done
		}
	}

	stepType := timestep.Mid
	if e.phase == Done {
		stepType = timestep.Last
	}
	e.last = timestep.New(stepType, -d, 1, e.current, e.last.Number+1)

	return e.last, e.phase == Done, nil
}

// closeTour returns the vehicle to the depot and records its tour
func (e *Environment) closeTour() {
	depot := e.reg.DepotIndex()
	if len(e.tour) > 1 {
		e.tours = append(e.tours, append(e.tour, depot))
	}
	e.tour = stop.Tour{depot}
	e.load = stop.Demand{}
	e.current = depot
	e.hubVisits++
}

// Registry returns the Registry of the Environment
func (e *Environment) Registry() *stop.Registry {
	return e.reg
}

// Capacity returns the vehicle capacity
func (e *Environment) Capacity() stop.Capacity {
	return e.capacity
}

// Current returns the index of the stop the vehicle is at
func (e *Environment) Current() int {
	return e.current
}

// Phase returns the phase of the episode
func (e *Environment) Phase() Phase {
	return e.phase
}

// Remaining returns the stops not yet visited
func (e *Environment) Remaining() []int {
	return append([]int(nil), e.remaining...)
}

// Load returns the load of the current vehicle
func (e *Environment) Load() stop.Demand {
	return e.load
}

// Tours returns the tours completed so far
func (e *Environment) Tours() []stop.Tour {
	out := make([]stop.Tour, len(e.tours))
	for i, t := range e.tours {
		out[i] = append(stop.Tour(nil), t...)
	}
	return out
}

// Cost returns the distance travelled so far in the episode
func (e *Environment) Cost() float64 {
	return e.cost
}

// HubVisits returns the number of returns to the depot so far
func (e *Environment) HubVisits() int {
	return e.hubVisits
}

// LastTimeStep returns the last TimeStep of the Environment
func (e *Environment) LastTimeStep() timestep.TimeStep {
	return e.last
}

func without(s []int, v int) []int {
	out := make([]int, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
