package checkpointer

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/vrprl/agent/policy"
)

// nStep implements checkpointing every N episodes
type nStep struct {
	interval int
	table    func() *policy.Table // Returns the table to save
	saver    Saver

	// name returns the model name to save the table under.
	//
	// If each checkpoint should be kept under its own name with an
	// incremented number as a suffix (e.g. model-1, model-2, ...), use
	// NameEnumerator. If only the latest checkpoint should be kept, use
	// FixedName. For example:
	//
	// n := NewNStep(10, manager.Table, store, NameTimer("model"))
	name func() string
}

// NewNStep returns a checkpointer that checkpoints every n episodes.
func NewNStep(n int, table func() *policy.Table, saver Saver,
	name func() string) Checkpointer {
	if n < 1 {
		panic(fmt.Sprintf("newNStep: interval must be positive, got %d", n))
	}
	return &nStep{
		interval: n,
		table:    table,
		saver:    saver,
		name:     name,
	}
}

// Checkpoint saves the tracked table if episode is a multiple of the
// interval
func (n *nStep) Checkpoint(ctx context.Context, episode int) error {
	if episode%n.interval != 0 {
		return nil
	}
	name := n.name()
	if err := n.saver.Save(ctx, name, n.table()); err != nil {
		return fmt.Errorf("checkpoint: episode %d as %v: %w", episode, name,
			err)
	}
	return nil
}
