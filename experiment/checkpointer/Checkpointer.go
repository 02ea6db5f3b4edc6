// Package checkpointer checkpoints a policy table during training by
// saving it to a store between episodes
package checkpointer

import (
	"context"

	"github.com/samuelfneumann/vrprl/agent/policy"
)

// Saver saves a policy table under a model name
type Saver interface {
	Save(ctx context.Context, model string, t *policy.Table) error
}

// Checkpointer checkpoints/saves a policy table based on the number of
// finished training episodes
type Checkpointer interface {
	Checkpoint(ctx context.Context, episode int) error
}
