// Command vrprl solves a capacitated vehicle routing problem. An ant
// colony seeds a tabular policy, which is then improved with REINFORCE
// and rolled out greedily to build the final tours.
//
// Usage:
//
//	vrprl -config vrprl.yaml -mode train
//	vrprl -config vrprl.yaml -mode test -model berlin
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/samuelfneumann/vrprl/aco"
	"github.com/samuelfneumann/vrprl/agent/policy"
	"github.com/samuelfneumann/vrprl/agent/vrp"
	"github.com/samuelfneumann/vrprl/config"
	"github.com/samuelfneumann/vrprl/environment"
	"github.com/samuelfneumann/vrprl/experiment/checkpointer"
	"github.com/samuelfneumann/vrprl/experiment/tracker"
	"github.com/samuelfneumann/vrprl/metrics"
	"github.com/samuelfneumann/vrprl/render"
	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/store"
	"github.com/samuelfneumann/vrprl/utils/matutils"
)

// maxPrintedStops is the largest problem whose colony probabilities are
// logged in full
const maxPrintedStops = 12

func main() {
	configFile := flag.String("config", "", "YAML configuration file")
	mode := flag.String("mode", "train", "train or test")
	dataset := flag.String("dataset", "", "CSV file of stops, depot first")
	reference := flag.String("reference", "", "JSON file of reference tours")
	model := flag.String("model", "", "name the policy is stored under")
	storeURL := flag.String("store", "", "policy store url")
	output := flag.String("output", "", "output directory")
	episodes := flag.Int("episodes", 0, "number of training episodes")
	seed := flag.Uint64("seed", 0, "random seed")
	flag.Parse()

	if *mode != "train" && *mode != "test" {
		log.Fatalf("unknown mode %q, expected train or test", *mode)
	}

	if err := config.LoadEnvFiles(".env"); err != nil {
		log.Fatalf("%v", err)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dataset":
			cfg.Dataset = *dataset
		case "reference":
			cfg.Reference = *reference
		case "model":
			cfg.Model = *model
		case "store":
			cfg.Store = *storeURL
		case "output":
			cfg.Output = *output
		case "episodes":
			cfg.Training.Episodes = *episodes
		case "seed":
			cfg.Seed = *seed
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	runID := uuid.New().String()
	ctx := metrics.WithRunID(context.Background(), runID)
	log.SetPrefix(fmt.Sprintf("[%s] ", runID[:8]))

	if err := run(ctx, cfg, *mode == "train", runID); err != nil {
		log.Fatalf("run_id=%s %v", runID, err)
	}
}

// run solves the problem of cfg. In training mode the policy is trained
// and saved before the final tours are constructed; otherwise the final
// tours are constructed from the restored or seeded policy directly.
func run(ctx context.Context, cfg config.Config, train bool,
	runID string) error {
	metrics.RegisterDefault()

	outDir := filepath.Join(cfg.Output, runID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	reg, err := stop.LoadRegistry(cfg.Dataset)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	capacity := cfg.VehicleCapacity()
	if err := reg.CheckCapacity(capacity); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Printf("run: dataset=%s stops=%d depot=%d out=%s", cfg.Dataset,
		reg.Len(), reg.Depot().ID, outDir)

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer s.Close()

	manager, err := policy.NewManager(reg, cfg.PolicyConfig())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if !store.Restore(ctx, s, cfg.Model, manager) {
		res, err := colony(ctx, reg, cfg.ACOConfig())
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if err := render.Tours(reg, res.BestTours,
			filepath.Join(outDir, "aco.png")); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if err := manager.Seed(res.Probabilities); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	env, _, err := environment.New(reg, capacity)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	trainCfg := cfg.TrainingConfig(reg)

	if train {
		if err := training(ctx, cfg, trainCfg, env, manager, s, outDir,
			runID); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	rollout, err := construct(ctx, manager, env, trainCfg.MaxSteps)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := reg.ValidateTours(rollout.Tours, capacity); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := render.Tours(reg, rollout.Tours,
		filepath.Join(outDir, "tours.png")); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Printf("run: final tours\n%s", reg.FormatTours(rollout.Tours))

	if err := evaluate(cfg, reg, rollout.Tours); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

// colony runs the ant colony
func colony(ctx context.Context, reg *stop.Registry,
	cfg aco.Config) (res aco.Result, err error) {
	defer metrics.Time(ctx, "aco")(&err)

	c, err := aco.New(reg, cfg)
	if err != nil {
		return aco.Result{}, err
	}
	res, err = c.Run()
	if err != nil {
		return aco.Result{}, err
	}
	log.Printf("aco: best=%.3f tours=%d", res.BestDistance, len(res.BestTours))
	if reg.Len() <= maxPrintedStops {
		log.Printf("aco: probabilities\n%s", matutils.Format(res.Probabilities))
	}
	return res, nil
}

// training trains the policy of manager, plots the training curve, and
// saves the trained policy table
func training(ctx context.Context, cfg config.Config, trainCfg vrp.Config,
	env *environment.Environment, manager *policy.Manager, s store.Store,
	outDir, runID string) error {
	returns := tracker.NewReturn(filepath.Join(outDir, "returns.bin"))
	lengths := tracker.NewEpisodeLength(filepath.Join(outDir, "lengths.bin"))
	trackers := []tracker.Tracker{returns, lengths}

	var checkpointers []checkpointer.Checkpointer
	if cfg.Training.CheckpointEvery > 0 {
		name := fmt.Sprintf("%s-%s", cfg.Model, runID[:8])
		checkpointers = append(checkpointers, checkpointer.NewNStep(
			cfg.Training.CheckpointEvery, manager.Table, s,
			checkpointer.NameEnumerator(0, name)))
	}

	trainer, err := vrp.New(env, manager, trainCfg, trackers, checkpointers)
	if err != nil {
		return err
	}
	stats, err := trainer.Train(ctx)
	if err != nil {
		return err
	}
	log.Printf("training: episodes=%d best=%.3f worst=%.3f last=%.3f "+
		"mean=%.3f std=%.3f truncated=%d fallbacks=%d resets=%d",
		len(stats.Episodes), stats.BestCost, stats.WorstCost, stats.LastCost,
		stats.MeanCost, stats.StdCost, stats.Truncations, manager.Fallbacks(),
		manager.Resets())

	baselines := manager.Baselines()
	depot := env.Registry().Depot().ID
	log.Printf("training: baselines=%d depot_baseline=%.3f", len(baselines),
		baselines[depot])
	if len(baselines) <= maxPrintedStops {
		log.Printf("training: baselines by stop %v", baselines)
	}

	if err := render.Training(stats.Costs(), stats.Smoothed,
		filepath.Join(outDir, "training.png")); err != nil {
		return err
	}
	return s.Save(ctx, cfg.Model, manager.Table())
}

// construct builds the final tours greedily from the learned policy
func construct(ctx context.Context, manager *policy.Manager,
	env *environment.Environment, maxSteps int) (r policy.Rollout, err error) {
	defer metrics.Time(ctx, "construct")(&err)
	return manager.Construct(env, maxSteps)
}

// evaluate reports the duration estimate of tours, and compares them to
// the reference tours if configured
func evaluate(cfg config.Config, reg *stop.Registry, tours []stop.Tour) error {
	meta, err := reg.Evaluate(tours, cfg.Evaluation.Speed, cfg.Evaluation.Stay)
	if err != nil {
		return err
	}
	log.Printf("evaluate: learned %v", meta)

	if cfg.Reference == "" {
		return nil
	}
	file, err := os.Open(cfg.Reference)
	if err != nil {
		return err
	}
	defer file.Close()

	ref, err := reg.LoadReferenceTours(file)
	if err != nil {
		return err
	}
	refMeta, err := reg.Evaluate(ref, cfg.Evaluation.Speed, cfg.Evaluation.Stay)
	if err != nil {
		return err
	}
	log.Printf("evaluate: reference %v", refMeta)
	log.Printf("evaluate: distance_gap=%.3f duration_gap=%v",
		meta.Distance-refMeta.Distance,
		(meta.Duration - refMeta.Duration).Round(time.Second))
	return nil
}
