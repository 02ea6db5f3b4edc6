package environment

import "fmt"

// Kind is the kind of an Action
type Kind int

const (
	// ReturnForcedFull returns to the depot because no remaining stop
	// fits in the vehicle, while stops still remain
	ReturnForcedFull Kind = iota

	// MoveToStop moves to a remaining stop which fits in the vehicle
	MoveToStop

	// ReturnFinal returns to the depot after every stop was visited,
	// ending the episode
	ReturnFinal
)

func (k Kind) String() string {
	switch k {
	case ReturnForcedFull:
		return "ReturnForcedFull"
	case MoveToStop:
		return "MoveToStop"
	case ReturnFinal:
		return "ReturnFinal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Action is an action in the routing MDP. Target is the index of the
// stop moved to, which is the depot for both return kinds.
type Action struct {
	Kind   Kind
	Target int
}

// Move returns an action moving to the stop at index target
func Move(target int) Action {
	return Action{MoveToStop, target}
}

// ReturnFull returns an action returning a full vehicle to the depot
func ReturnFull(depot int) Action {
	return Action{ReturnForcedFull, depot}
}

// Finish returns an action returning to the depot for the last time
func Finish(depot int) Action {
	return Action{ReturnFinal, depot}
}

func (a Action) String() string {
	return fmt.Sprintf("%v(%d)", a.Kind, a.Target)
}
