// Package timestep implements timesteps of the agent-environment
// interaction in the routing MDP. Observations are stop indices.
package timestep

import (
	"fmt"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an environment.
// Observation is the index of the stop the vehicle is currently at.
type TimeStep struct {
	stepType    StepType
	Reward      float64
	Discount    float64
	Observation int
	Number      int
}

// New returns a new TimeStep
func New(t StepType, r, d float64, o int, n int) TimeStep {
	return TimeStep{t, r, d, o, n}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

// StepType returns the type of the TimeStep
func (t *TimeStep) StepType() StepType {
	return t.stepType
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Observation: %v  |  Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Discount, t.Observation,
		t.Number)
}

// Transition is a single (state, action, reward) triple. In the routing
// MDP the action is the index of the next stop, so Action is also the
// next state.
type Transition struct {
	State  int
	Action int
	Reward float64
}

// Trajectory is the ordered list of transitions of one episode
type Trajectory []Transition

// Return returns the undiscounted sum of rewards along the trajectory
func (t Trajectory) Return() float64 {
	var g float64
	for _, tr := range t {
		g += tr.Reward
	}
	return g
}

// Returns returns the discounted return from each step of the
// trajectory onward: G_t = r_t + discount * G_{t+1}
func (t Trajectory) Returns(discount float64) []float64 {
	out := make([]float64, len(t))
	var g float64
	for i := len(t) - 1; i >= 0; i-- {
		g = t[i].Reward + discount*g
		out[i] = g
	}
	return out
}
