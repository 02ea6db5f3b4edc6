// Package metrics holds the Prometheus collectors of a solver run and
// helpers to time and export them. Collectors are package level so that
// the colony, the policy manager and the training loop record into the
// same registry without passing it around.
package metrics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry of the solver
	Registry = prometheus.NewRegistry()

	// ACOIterations counts completed colony iterations
	ACOIterations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrprl_aco_iterations_total",
		Help: "Completed ant colony iterations.",
	})
	// ACOBestDistance is the best colony distance found so far
	ACOBestDistance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vrprl_aco_best_distance",
		Help: "Best total distance found by the ant colony.",
	})

	// Episodes counts finished training episodes by outcome
	Episodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vrprl_episodes_total",
		Help: "Training episodes by outcome (done, truncated).",
	}, []string{"outcome"})
	// EpisodeCost records the total distance of training episodes
	EpisodeCost = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vrprl_episode_cost",
		Help:    "Total distance of training episodes.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	})
	// BestCost is the best training episode cost so far
	BestCost = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vrprl_best_cost",
		Help: "Best total distance of a training episode.",
	})

	// PolicyFallbacks counts samples where the policy put no mass on
	// any legal action
	PolicyFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrprl_policy_fallbacks_total",
		Help: "Samples that fell back to uniform over legal actions.",
	})
	// PolicyResets counts stagnation resets of the policy
	PolicyResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrprl_policy_resets_total",
		Help: "Policy resets toward the prior after stagnation.",
	})

	// PhaseDuration records how long each phase of a run took
	PhaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vrprl_phase_duration_seconds",
		Help:    "Duration of run phases in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase", "status"})
)

var regOnce sync.Once

// RegisterDefault registers all collectors with Registry. It is safe to
// call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(ACOIterations, ACOBestDistance)
		Registry.MustRegister(Episodes, EpisodeCost, BestCost)
		Registry.MustRegister(PolicyFallbacks, PolicyResets)
		Registry.MustRegister(PhaseDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{}))
	})
}

// WriteTextfile writes the current value of every registered collector
// to filename in the Prometheus text format, e.g. for the node
// exporter's textfile collector.
func WriteTextfile(filename string) error {
	RegisterDefault()
	if err := prometheus.WriteToTextfile(filename, Registry); err != nil {
		return fmt.Errorf("writeTextfile: %w", err)
	}
	return nil
}

type ctxKey string

// RunIDKey is the context key of the identifier of a run
const RunIDKey ctxKey = "run_id"

// WithRunID returns a context carrying a run identifier for Time logs
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// Time starts timing a phase. The returned function logs the duration
// and records it in PhaseDuration; it is meant to be deferred with a
// pointer to the named error result of the caller:
//
//	defer metrics.Time(ctx, "train")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()
	runID, _ := ctx.Value(RunIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		status := "ok"
		if errp != nil && *errp != nil {
			status = "error"
			log.Printf("run_id=%s op=%s dur=%dms err=%v", runID, name,
				dur.Milliseconds(), *errp)
		} else {
			log.Printf("run_id=%s op=%s dur=%dms", runID, name,
				dur.Milliseconds())
		}
		PhaseDuration.WithLabelValues(name, status).Observe(dur.Seconds())
	}
}
