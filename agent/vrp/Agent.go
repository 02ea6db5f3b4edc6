// Package vrp implements the training loop of an agent learning to
// build delivery tours in the routing environment
package vrp

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/samuelfneumann/vrprl/agent"
	"github.com/samuelfneumann/vrprl/environment"
	"github.com/samuelfneumann/vrprl/experiment/checkpointer"
	"github.com/samuelfneumann/vrprl/experiment/tracker"
	"github.com/samuelfneumann/vrprl/metrics"
	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/timestep"
	"github.com/samuelfneumann/vrprl/utils/progressbar"
)

// Agent trains an agent.Agent on a routing Environment, one episode at
// a time. After each episode the agent is updated with the trajectory of
// the episode, so every episode sees the policy learned from all
// previous ones.
type Agent struct {
	env           *environment.Environment
	agent         agent.Agent
	cfg           Config
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
}

// New returns a new training loop. Trackers see every TimeStep of every
// episode and checkpointers are called after every episode.
func New(env *environment.Environment, a agent.Agent, cfg Config,
	trackers []tracker.Tracker,
	checkpointers []checkpointer.Checkpointer) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new agent: %w", err)
	}
	return &Agent{
		env:           env,
		agent:         a,
		cfg:           cfg,
		trackers:      trackers,
		checkpointers: checkpointers,
	}, nil
}

// Train runs the configured number of training episodes and returns
// their statistics. The trackers are saved once training finishes.
func (a *Agent) Train(ctx context.Context) (stats Statistics, err error) {
	defer metrics.Time(ctx, "train")(&err)

	a.agent.Train()
	stats = newStatistics(a.cfg.Episodes)

	var bar *progressbar.ManualProgressBar
	if a.cfg.Progress {
		bar = progressbar.NewManualProgressBar(os.Stderr, 40, a.cfg.Episodes)
		defer bar.Close()
	}

	for ep := 0; ep < a.cfg.Episodes; ep++ {
		e, traj, tours, err := a.RunEpisode(ep)
		if err != nil {
			return stats, fmt.Errorf("train: %w", err)
		}
		if err := a.agent.Update(traj); err != nil {
			return stats, fmt.Errorf("train: episode %d: %w", ep, err)
		}
		stats.record(e, tours)

		outcome := "done"
		if e.Truncated {
			outcome = "truncated"
			log.Printf("training: episode=%d truncated after %d steps",
				ep, e.Length)
		}
		metrics.Episodes.WithLabelValues(outcome).Inc()
		metrics.EpisodeCost.Observe(e.Cost)
		if stats.BestEpisode >= 0 {
			metrics.BestCost.Set(stats.BestCost)
		}

		for _, c := range a.checkpointers {
			if err := c.Checkpoint(ctx, ep+1); err != nil {
				return stats, fmt.Errorf("train: %w", err)
			}
		}

		if a.cfg.LogEvery > 0 && (ep+1)%a.cfg.LogEvery == 0 {
			log.Printf("training: episode=%d cost=%.3f best=%.3f "+
				"truncations=%d", ep+1, e.Cost, stats.BestCost,
				stats.Truncations)
		}
		if bar != nil {
			bar.Increment()
			bar.SetStatus("best: %.3f", stats.BestCost)
			bar.Display()
		}
	}
	stats.finish(a.cfg.SmoothingWindow)

	for _, t := range a.trackers {
		if err := t.Save(); err != nil {
			return stats, fmt.Errorf("train: %w", err)
		}
	}
	return stats, nil
}

// RunEpisode runs a single episode with the current policy and returns
// its statistics, trajectory, and tours. The agent is not updated.
//
// An episode reaching the step limit is truncated: the reward of its
// last transition is lowered so that the episode return is the
// negative cost ceiling of the registry, and a Last TimeStep carrying
// that penalty is passed to the trackers.
func (a *Agent) RunEpisode(ep int) (EpisodeStats, timestep.Trajectory,
	[]stop.Tour, error) {
	step := a.env.Reset()
	a.track(step)

	traj := make(timestep.Trajectory, 0, a.cfg.MaxSteps)
	done := false
	for !done && len(traj) < a.cfg.MaxSteps {
		action := a.agent.SelectAction(step, a.env.LegalActions())

		next, d, err := a.env.Step(action)
		if err != nil {
			return EpisodeStats{}, nil, nil, fmt.Errorf("episode %d: %w", ep,
				err)
		}
		traj = append(traj, timestep.Transition{
			State:  step.Observation,
			Action: action.Target,
			Reward: next.Reward,
		})
		a.track(next)
		step, done = next, d
	}

	e := EpisodeStats{
		Episode: ep,
		Cost:    a.env.Cost(),
		Length:  len(traj),
		Tours:   len(a.env.Tours()),
	}

	if !done {
		ceiling := a.env.Registry().CostCeiling()
		penalty := -ceiling - traj.Return()
		traj[len(traj)-1].Reward += penalty
		a.track(timestep.New(timestep.Last, penalty, 1, step.Observation,
			step.Number+1))

		e.Truncated = true
		e.Cost = ceiling
	}
	e.Return = traj.Return()

	return e, traj, a.env.Tours(), nil
}

// track passes a TimeStep to every tracker
func (a *Agent) track(step timestep.TimeStep) {
	for _, t := range a.trackers {
		t.Track(step)
	}
}
