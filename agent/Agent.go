// Package agent defines the interfaces of agents learning to build
// tours in the routing MDP
package agent

import (
	"github.com/samuelfneumann/vrprl/environment"
	"github.com/samuelfneumann/vrprl/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Update performs an update with the trajectory of a full episode
	Update(traj timestep.Trajectory) error
}

// Policy represents a policy that an agent can have.
//
// A Policy chooses one of the legal actions of the state that the
// TimeStep observes. In training mode actions are sampled, in evaluation
// mode the most likely action is taken.
type Policy interface {
	SelectAction(t timestep.TimeStep, legal environment.Legal) environment.Action
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}
