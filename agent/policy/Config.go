package policy

import "fmt"

// Config configures a Manager
type Config struct {
	// LearningRate scales every weight adjustment
	LearningRate float64

	// Discount discounts rewards per remaining step of an episode
	Discount float64

	// BaselineRate is the step size of the exponential running average
	// of returns kept as the baseline of each state
	BaselineRate float64

	// GoodScale and BadScale scale the adjustments made after episodes
	// whose return beats the baseline of the start state, and after
	// episodes whose return does not
	GoodScale float64
	BadScale  float64

	// SeedFactor scales the prior blended into the weights by Seed
	SeedFactor float64

	// Exploration is the probability of sampling uniformly over the
	// legal actions during training
	Exploration float64

	// MinWeight is the floor a weight can be decreased to by an update.
	// Weights already below it are never increased by a decrease.
	MinWeight float64

	// StagnationEpisodes consecutive episodes which do not improve on
	// the best return by more than StagnationThreshold times its
	// magnitude trigger a reset of the visited states toward their
	// prior. Zero disables resets.
	StagnationThreshold float64
	StagnationEpisodes  int

	// ResetBlend is the fraction of the prior mixed into a reset state
	ResetBlend float64

	Seed uint64
}

// DefaultConfig returns the default Manager configuration
func DefaultConfig() Config {
	return Config{
		LearningRate:        0.1,
		Discount:            0.95,
		BaselineRate:        0.1,
		GoodScale:           1.5,
		BadScale:            0.5,
		SeedFactor:          1.0,
		Exploration:         0.05,
		MinWeight:           1e-4,
		StagnationThreshold: 0.0,
		StagnationEpisodes:  50,
		ResetBlend:          0.5,
	}
}

// Validate returns an error describing the first invalid setting
func (c Config) Validate() error {
	switch {
	case c.LearningRate <= 0:
		return fmt.Errorf("policy config: learning rate must be positive, "+
			"got %v", c.LearningRate)
	case c.Discount <= 0 || c.Discount > 1:
		return fmt.Errorf("policy config: discount must be in (0, 1], got %v",
			c.Discount)
	case c.BaselineRate <= 0 || c.BaselineRate > 1:
		return fmt.Errorf("policy config: baseline rate must be in (0, 1], "+
			"got %v", c.BaselineRate)
	case c.GoodScale <= 0 || c.BadScale <= 0:
		return fmt.Errorf("policy config: good and bad scales must be "+
			"positive, got %v and %v", c.GoodScale, c.BadScale)
	case c.SeedFactor < 0:
		return fmt.Errorf("policy config: seed factor must be non-negative, "+
			"got %v", c.SeedFactor)
	case c.Exploration < 0 || c.Exploration > 1:
		return fmt.Errorf("policy config: exploration must be in [0, 1], "+
			"got %v", c.Exploration)
	case c.MinWeight < 0 || c.MinWeight >= 1:
		return fmt.Errorf("policy config: min weight must be in [0, 1), "+
			"got %v", c.MinWeight)
	case c.StagnationThreshold < 0 || c.StagnationEpisodes < 0:
		return fmt.Errorf("policy config: stagnation settings must be "+
			"non-negative, got threshold=%v episodes=%v",
			c.StagnationThreshold, c.StagnationEpisodes)
	case c.ResetBlend < 0 || c.ResetBlend > 1:
		return fmt.Errorf("policy config: reset blend must be in [0, 1], "+
			"got %v", c.ResetBlend)
	}
	return nil
}
