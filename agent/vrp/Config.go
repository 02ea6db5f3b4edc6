package vrp

import (
	"fmt"

	"github.com/samuelfneumann/vrprl/stop"
)

// Config configures the training loop of an Agent
type Config struct {
	// Episodes is the number of training episodes
	Episodes int

	// MaxSteps bounds the number of steps of a single episode. Episodes
	// reaching it are truncated and recorded as worst cases.
	MaxSteps int

	// SmoothingWindow is the window of the moving average of episode
	// costs
	SmoothingWindow int

	// LogEvery logs training progress every LogEvery episodes. Zero
	// disables logging.
	LogEvery int

	// Progress displays a progress bar while training
	Progress bool
}

// DefaultConfig returns the default training configuration for a
// problem over reg. Episodes are allowed four steps per stop, which is
// twice what the longest possible episode takes.
func DefaultConfig(reg *stop.Registry) Config {
	return Config{
		Episodes:        1000,
		MaxSteps:        4 * reg.Len(),
		SmoothingWindow: 25,
	}
}

// Validate returns an error describing the first invalid setting
func (c Config) Validate() error {
	switch {
	case c.Episodes < 1:
		return fmt.Errorf("vrp config: episodes must be positive, got %d",
			c.Episodes)
	case c.MaxSteps < 1:
		return fmt.Errorf("vrp config: max steps must be positive, got %d",
			c.MaxSteps)
	case c.SmoothingWindow < 1:
		return fmt.Errorf("vrp config: smoothing window must be positive, "+
			"got %d", c.SmoothingWindow)
	case c.LogEvery < 0:
		return fmt.Errorf("vrp config: log interval must be non-negative, "+
			"got %d", c.LogEvery)
	}
	return nil
}
