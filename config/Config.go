// Package config loads the configuration of a solver run from a YAML
// file, .env files, and environment variables, and converts it into the
// configurations of the colony, the policy, and the training loop.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/vrprl/aco"
	"github.com/samuelfneumann/vrprl/agent/policy"
	"github.com/samuelfneumann/vrprl/agent/vrp"
	"github.com/samuelfneumann/vrprl/stop"
)

// Environment variables overriding file settings
const (
	EnvStore    = "VRPRL_STORE"
	EnvDatabase = "DATABASE_URL"
	EnvRedis    = "REDIS_URL"
	EnvSeed     = "VRPRL_SEED"
)

// Capacity is the capacity of a vehicle
type Capacity struct {
	Weight float64 `yaml:"weight"`
	Volume float64 `yaml:"volume"`
}

// ACO configures the ant colony
type ACO struct {
	Iterations        int     `yaml:"iterations"`
	Ants              int     `yaml:"ants"` // zero: one ant per vehicle
	Alpha             float64 `yaml:"alpha"`
	Beta              float64 `yaml:"beta"`
	Evaporation       float64 `yaml:"evaporation"`
	PheromoneConstant float64 `yaml:"pheromone_constant"`
	InitialPheromone  float64 `yaml:"initial_pheromone"`
	LogEvery          int     `yaml:"log_every"`
}

// Policy configures the policy manager
type Policy struct {
	LearningRate        float64 `yaml:"learning_rate"`
	Discount            float64 `yaml:"discount_factor"`
	BaselineRate        float64 `yaml:"baseline_rate"`
	GoodScale           float64 `yaml:"good_scale"`
	BadScale            float64 `yaml:"bad_scale"`
	SeedFactor          float64 `yaml:"seed_factor"`
	Exploration         float64 `yaml:"exploration_factor"`
	MinWeight           float64 `yaml:"min_weight"`
	StagnationThreshold float64 `yaml:"stagnation_threshold"`
	StagnationEpisodes  int     `yaml:"stagnation_episodes"`
	ResetBlend          float64 `yaml:"reset_blend"`
}

// Training configures the training loop
type Training struct {
	Episodes        int  `yaml:"num_episodes"`
	MaxSteps        int  `yaml:"max_steps"` // zero: four steps per stop
	SmoothingWindow int  `yaml:"smoothing_window"`
	LogEvery        int  `yaml:"log_every"`
	CheckpointEvery int  `yaml:"checkpoint_every"` // zero: no checkpoints
	Progress        bool `yaml:"progress"`
}

// Evaluation configures the duration estimate of tours
type Evaluation struct {
	Speed float64       `yaml:"speed"` // distance units per hour
	Stay  time.Duration `yaml:"stay"`  // service time per stop
}

// Config is the configuration of a run
type Config struct {
	Dataset     string `yaml:"dataset"`
	Reference   string `yaml:"reference"`
	Model       string `yaml:"model"`
	Store       string `yaml:"store"`
	Output      string `yaml:"output"`
	MetricsFile string `yaml:"metrics_file"`
	Seed        uint64 `yaml:"seed"`

	Vehicles int      `yaml:"vehicles"`
	Capacity Capacity `yaml:"capacity"`

	ACO        ACO        `yaml:"aco"`
	Policy     Policy     `yaml:"policy"`
	Training   Training   `yaml:"training"`
	Evaluation Evaluation `yaml:"evaluation"`
}

// Default returns the default configuration
func Default() Config {
	a := aco.DefaultConfig(stop.Capacity{})
	p := policy.DefaultConfig()

	return Config{
		Model:    "vrprl",
		Store:    "file://models",
		Output:   "out",
		Seed:     1,
		Vehicles: 1,
		ACO: ACO{
			Iterations:        a.Iterations,
			Alpha:             a.Alpha,
			Beta:              a.Beta,
			Evaporation:       a.Evaporation,
			PheromoneConstant: a.PheromoneConstant,
			InitialPheromone:  a.InitialPheromone,
		},
		Policy: Policy{
			LearningRate:        p.LearningRate,
			Discount:            p.Discount,
			BaselineRate:        p.BaselineRate,
			GoodScale:           p.GoodScale,
			BadScale:            p.BadScale,
			SeedFactor:          p.SeedFactor,
			Exploration:         p.Exploration,
			MinWeight:           p.MinWeight,
			StagnationThreshold: p.StagnationThreshold,
			StagnationEpisodes:  p.StagnationEpisodes,
			ResetBlend:          p.ResetBlend,
		},
		Training: Training{
			Episodes:        1000,
			SmoothingWindow: 25,
			LogEvery:        100,
		},
		Evaluation: Evaluation{
			Speed: 30,
			Stay:  3 * time.Minute,
		},
	}
}

// Load reads the YAML configuration file filename on top of the
// defaults, then applies environment overrides. An empty filename skips
// the file.
func Load(filename string) (Config, error) {
	cfg := Default()

	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		defer file.Close()

		if err := cfg.Decode(file); err != nil {
			return Config{}, fmt.Errorf("load config: %v: %w", filename, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Decode decodes YAML onto c. Unknown fields are an error.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// LoadEnvFiles loads .env files into the environment without
// overriding variables which are already set. Missing files are
// ignored.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %v: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the environment. The store is taken
// from VRPRL_STORE, else DATABASE_URL, else REDIS_URL.
func (c *Config) ApplyEnv() error {
	for _, key := range []string{EnvStore, EnvDatabase, EnvRedis} {
		if v := os.Getenv(key); v != "" {
			c.Store = v
			break
		}
	}

	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("applyEnv: %v: %w", EnvSeed, err)
		}
		c.Seed = seed
	}
	return nil
}

// Validate returns an error describing the first invalid setting which
// is not checked by the component configurations
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("config: dataset must be set")
	case c.Model == "":
		return errors.New("config: model must be set")
	case c.Vehicles < 1:
		return fmt.Errorf("config: vehicles must be positive, got %d",
			c.Vehicles)
	case c.Evaluation.Speed <= 0:
		return fmt.Errorf("config: evaluation speed must be positive, got %v",
			c.Evaluation.Speed)
	case c.Training.CheckpointEvery < 0:
		return fmt.Errorf("config: checkpoint interval must be "+
			"non-negative, got %d", c.Training.CheckpointEvery)
	}
	return c.VehicleCapacity().Validate()
}

// VehicleCapacity returns the capacity of a vehicle
func (c Config) VehicleCapacity() stop.Capacity {
	return stop.Capacity{Weight: c.Capacity.Weight, Volume: c.Capacity.Volume}
}

// ACOConfig returns the colony configuration. Without a configured
// number of ants, the colony runs one ant per vehicle.
func (c Config) ACOConfig() aco.Config {
	ants := c.ACO.Ants
	if ants <= 0 {
		ants = c.Vehicles
	}
	return aco.Config{
		Iterations:        c.ACO.Iterations,
		Ants:              ants,
		Alpha:             c.ACO.Alpha,
		Beta:              c.ACO.Beta,
		Evaporation:       c.ACO.Evaporation,
		PheromoneConstant: c.ACO.PheromoneConstant,
		InitialPheromone:  c.ACO.InitialPheromone,
		Capacity:          c.VehicleCapacity(),
		Seed:              c.Seed,
		LogEvery:          c.ACO.LogEvery,
	}
}

// PolicyConfig returns the policy manager configuration
func (c Config) PolicyConfig() policy.Config {
	p := c.Policy
	return policy.Config{
		LearningRate:        p.LearningRate,
		Discount:            p.Discount,
		BaselineRate:        p.BaselineRate,
		GoodScale:           p.GoodScale,
		BadScale:            p.BadScale,
		SeedFactor:          p.SeedFactor,
		Exploration:         p.Exploration,
		MinWeight:           p.MinWeight,
		StagnationThreshold: p.StagnationThreshold,
		StagnationEpisodes:  p.StagnationEpisodes,
		ResetBlend:          p.ResetBlend,
		Seed:                c.Seed + 1,
	}
}

// TrainingConfig returns the training loop configuration for a problem
// over reg
func (c Config) TrainingConfig(reg *stop.Registry) vrp.Config {
	t := vrp.DefaultConfig(reg)
	t.Episodes = c.Training.Episodes
	if c.Training.MaxSteps > 0 {
		t.MaxSteps = c.Training.MaxSteps
	}
	t.SmoothingWindow = c.Training.SmoothingWindow
	t.LogEvery = c.Training.LogEvery
	t.Progress = c.Training.Progress
	return t
}
