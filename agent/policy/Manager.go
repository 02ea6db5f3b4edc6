// Package policy implements a tabular stochastic policy over the stops
// of a routing problem, learned with REINFORCE and a per-state running
// baseline.
//
// The policy is a Table of next-stop distributions, one per stop. It
// is usually seeded with the probability matrix of an ant colony so that
// learning starts biased toward the edges the colony favoured.
package policy

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/samuelfneumann/vrprl/environment"
	"github.com/samuelfneumann/vrprl/metrics"
	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/timestep"
	"github.com/samuelfneumann/vrprl/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrStepLimit is returned when a rollout does not finish within its
// step budget
var ErrStepLimit = errors.New("step limit reached")

// Rollout is the outcome of a deterministic policy rollout
type Rollout struct {
	Tours []stop.Tour
	Cost  float64
	Steps int
}

// Manager owns a policy Table and implements agent.Agent with it
type Manager struct {
	cfg   Config
	reg   *stop.Registry
	table *Table

	src rand.Source
	rng *rand.Rand

	eval bool

	bestReturn float64
	hasBest    bool
	stale      int

	fallbacks int
	resets    int
}

// NewManager returns a Manager with a uniform policy over the stops of
// reg
func NewManager(reg *stop.Registry, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}

	src := rand.NewSource(cfg.Seed)
	return &Manager{
		cfg:   cfg,
		reg:   reg,
		table: NewTable(reg.IDs()),
		src:   src,
		rng:   rand.New(src),
	}, nil
}

// Seed blends prior into the policy. Each row of the policy becomes the
// normalized sum of the current row and SeedFactor times the normalized
// prior row. The normalized prior is kept as the target of stagnation
// resets.
func (m *Manager) Seed(prior mat.Matrix) error {
	n := m.table.Len()
	if r, c := prior.Dims(); r != n || c != n {
		return fmt.Errorf("seed: prior is %dx%d, want %dx%d", r, c, n, n)
	}

	p := mat.DenseCopyOf(prior)
	for s := 0; s < n; s++ {
		for _, v := range p.RawRowView(s) {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("seed: prior row %d has entry %v", s, v)
			}
		}
		normalizeRow(p, s)
	}

	w := m.table.Weights
	for s := 0; s < n; s++ {
		row := w.RawRowView(s)
		for j, v := range p.RawRowView(s) {
			row[j] += m.cfg.SeedFactor * v
		}
		normalizeRow(w, s)
	}
	m.table.Prior = p

	return nil
}

// Table returns a copy of the policy table
func (m *Manager) Table() *Table {
	return m.table.Clone()
}

// SetTable replaces the policy table, e.g. with one loaded from a
// store. The table must be valid and built for the same stops.
func (m *Manager) SetTable(t *Table) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("setTable: %w", err)
	}
	ids := m.reg.IDs()
	if len(ids) != len(t.StopIDs) {
		return fmt.Errorf("setTable: table has %d stops, registry has %d",
			len(t.StopIDs), len(ids))
	}
	for i := range ids {
		if ids[i] != t.StopIDs[i] {
			return fmt.Errorf("setTable: stop %d is %d in the table and %d "+
				"in the registry", i, t.StopIDs[i], ids[i])
		}
	}

	m.table = t.Clone()
	return nil
}

// Baselines returns the baseline of every stop with an observed return,
// keyed by stop identifier
func (m *Manager) Baselines() map[int]float64 {
	out := make(map[int]float64)
	for s, ok := range m.table.Observed {
		if ok {
			out[m.table.StopIDs[s]] = m.table.Baseline[s]
		}
	}
	return out
}

// Fallbacks returns the number of samples for which the policy put no
// mass on any legal action
func (m *Manager) Fallbacks() int {
	return m.fallbacks
}

// Resets returns the number of stagnation resets
func (m *Manager) Resets() int {
	return m.resets
}

// Eval sets the policy to evaluation mode, taking the most likely
// legal action
func (m *Manager) Eval() { m.eval = true }

// Train sets the policy to training mode, sampling legal actions
func (m *Manager) Train() { m.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (m *Manager) IsEval() bool { return m.eval }

// SelectAction selects one of the legal actions in the state observed
// by t. Return actions are forced, so the policy only chooses among
// MoveToStop targets.
func (m *Manager) SelectAction(t timestep.TimeStep,
	legal environment.Legal) environment.Action {
	if len(legal.Targets) == 0 {
		panic(fmt.Sprintf("selectAction: no legal actions in state %d",
			t.Observation))
	}
	if legal.Kind != environment.MoveToStop {
		return environment.Action{Kind: legal.Kind, Target: legal.Targets[0]}
	}

	if m.eval {
		return environment.Move(m.Greedy(t.Observation, legal))
	}
	return environment.Move(m.Sample(t.Observation, legal.Targets))
}

// Sample draws the next stop from state among legal, with probability
// proportional to the policy restricted to legal. With probability
// Exploration, or when the policy has no mass on legal, the stop is
// drawn uniformly.
func (m *Manager) Sample(state int, legal []int) int {
	if len(legal) == 0 {
		panic(fmt.Sprintf("sample: no legal actions in state %d", state))
	}
	if m.cfg.Exploration > 0 && m.rng.Float64() < m.cfg.Exploration {
		return legal[m.rng.Intn(len(legal))]
	}

	weights := make([]float64, len(legal))
	var total float64
	for i, a := range legal {
		weights[i] = m.table.Weights.At(state, a)
		total += weights[i]
	}

	if !(total > 0) || math.IsInf(total, 1) {
		m.fallbacks++
		metrics.PolicyFallbacks.Inc()
		log.Printf("policy: state=%d no mass on %d legal actions, sampling "+
			"uniformly", m.table.StopIDs[state], len(legal))
		return legal[m.rng.Intn(len(legal))]
	}
	if len(legal) == 1 {
		return legal[0]
	}

	dist := distuv.NewCategorical(weights, m.src)
	return legal[int(dist.Rand())]
}

// Greedy returns the legal next stop with the largest weight from
// state. Ties go to the nearest stop, then to the lowest index.
func (m *Manager) Greedy(state int, legal environment.Legal) int {
	weights := make([]float64, len(legal.ByDistance))
	for i, c := range legal.ByDistance {
		weights[i] = m.table.Weights.At(state, c.Stop)
	}
	_, best := floatutils.MaxSlice(weights)
	return legal.ByDistance[best[0]].Stop
}

// Update performs a REINFORCE update with the trajectory of an episode.
//
// For every step t the discounted return G_t is compared with the
// baseline of the state to form an advantage. The weight of the action
// taken moves by LearningRate * scale * advantage / |baseline|, where
// scale is GoodScale if the episode return beats the baseline of the
// start state and BadScale otherwise. Baselines then move toward G_t and
// the updated rows are renormalized. Forced returns to the depot only
// move the baseline.
func (m *Manager) Update(traj timestep.Trajectory) error {
	if len(traj) == 0 {
		return nil
	}
	n := m.table.Len()
	for i, tr := range traj {
		if tr.State < 0 || tr.State >= n || tr.Action < 0 || tr.Action >= n ||
			tr.State == tr.Action {
			return fmt.Errorf("update: step %d has invalid transition %d -> %d",
				i, tr.State, tr.Action)
		}
	}

	returns := traj.Returns(m.cfg.Discount)
	start := traj[0].State
	episodeReturn := returns[0]

	scale := m.cfg.BadScale
	if !m.table.Observed[start] || episodeReturn > m.table.Baseline[start] {
		scale = m.cfg.GoodScale
	}

	w := m.table.Weights
	depot := m.reg.DepotIndex()
	prev := make(map[int][]float64)

	for t, tr := range traj {
		s, a, g := tr.State, tr.Action, returns[t]

		if !m.table.Observed[s] {
			m.table.Baseline[s] = g
			m.table.Observed[s] = true
			continue
		}
		b := m.table.Baseline[s]
		advantage := g - b

		norm := math.Abs(b)
		if norm < 1e-12 {
			norm = 1
		}
		m.table.Baseline[s] = b + m.cfg.BaselineRate*advantage

		// Returns to the depot are forced by the environment, not chosen
		if a == depot {
			continue
		}
		delta := m.cfg.LearningRate * scale * advantage / norm

		if _, ok := prev[s]; !ok {
			prev[s] = m.table.Row(s)
		}
		old := w.At(s, a)
		w.Set(s, a, math.Max(old+delta, math.Min(old, m.cfg.MinWeight)))
	}

	for s, p := range prev {
		renormalize(w.RawRowView(s), p, s, m.cfg.MinWeight)
	}

	m.trackStagnation(episodeReturn, traj)
	return nil
}

// trackStagnation counts consecutive episodes without a meaningful
// improvement of the best return, resetting the states visited by traj
// toward their prior once the count reaches StagnationEpisodes
func (m *Manager) trackStagnation(ret float64, traj timestep.Trajectory) {
	if !m.hasBest {
		m.bestReturn, m.hasBest = ret, true
		return
	}

	improved := ret-m.bestReturn > m.cfg.StagnationThreshold*math.Abs(m.bestReturn)
	if ret > m.bestReturn {
		m.bestReturn = ret
	}
	if improved || m.cfg.StagnationEpisodes == 0 {
		m.stale = 0
		return
	}

	m.stale++
	if m.stale < m.cfg.StagnationEpisodes {
		return
	}
	m.stale = 0

	visited := make(map[int]bool)
	for _, tr := range traj {
		visited[tr.State] = true
	}
	for s := range visited {
		m.reset(s)
	}
	m.resets++
	metrics.PolicyResets.Inc()
	log.Printf("policy: reset=%d states=%d best_return=%.3f", m.resets,
		len(visited), m.bestReturn)
}

// reset blends the distribution of state s toward its prior
func (m *Manager) reset(s int) {
	row := m.table.Weights.RawRowView(s)
	prior := m.table.Prior.RawRowView(s)
	for j := range row {
		row[j] = (1-m.cfg.ResetBlend)*row[j] + m.cfg.ResetBlend*prior[j]
	}
	normalizeRow(m.table.Weights, s)
}

// Construct rolls the policy out deterministically in env, always
// taking the most likely legal action, and returns the resulting tours.
// ErrStepLimit is returned if the episode does not finish within
// maxSteps steps.
func (m *Manager) Construct(env *environment.Environment,
	maxSteps int) (Rollout, error) {
	wasEval := m.eval
	m.Eval()
	defer func() { m.eval = wasEval }()

	step := env.Reset()
	for i := 0; i < maxSteps; i++ {
		action := m.SelectAction(step, env.LegalActions())

		var done bool
		var err error
		step, done, err = env.Step(action)
		if err != nil {
			return Rollout{}, fmt.Errorf("construct: %w", err)
		}
		if done {
			return Rollout{Tours: env.Tours(), Cost: env.Cost(), Steps: i + 1}, nil
		}
	}
	return Rollout{}, fmt.Errorf("construct: %d steps: %w", maxSteps,
		ErrStepLimit)
}
