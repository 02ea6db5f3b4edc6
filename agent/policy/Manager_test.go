package policy

import (
	"math"
	"testing"

	"github.com/samuelfneumann/vrprl/aco"
	"github.com/samuelfneumann/vrprl/environment"
	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func grid(t *testing.T, n int, seed uint64) *stop.Registry {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	stops := []stop.Stop{{ID: 0, X: 5, Y: 5}}
	for i := 1; i <= n; i++ {
		stops = append(stops, stop.Stop{
			ID: i,
			X:  rng.Float64() * 10,
			Y:  rng.Float64() * 10,
			Demand: stop.Demand{
				Weight: 1 + rng.Float64()*3,
				Volume: 1 + rng.Float64()*3,
				Count:  1,
			},
		})
	}
	reg, err := stop.NewRegistry(stops, 0)
	require.NoError(t, err)
	return reg
}

// episode runs one sampled episode and returns its trajectory
func episode(t *testing.T, m *Manager, env *environment.Environment) timestep.Trajectory {
	t.Helper()
	var traj timestep.Trajectory
	step := env.Reset()
	for {
		action := m.SelectAction(step, env.LegalActions())
		next, done, err := env.Step(action)
		require.NoError(t, err)
		traj = append(traj, timestep.Transition{
			State:  step.Observation,
			Action: action.Target,
			Reward: next.Reward,
		})
		step = next
		if done {
			return traj
		}
	}
}

func assertStochastic(t *testing.T, m mat.Matrix) {
	t.Helper()
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		row := mat.Row(nil, i, m)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-9, "row %d", i)
		assert.Zero(t, row[i])
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestNewManagerIsUniform(t *testing.T) {
	reg := grid(t, 4, 1)
	m, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)

	table := m.Table()
	assertStochastic(t, table.Weights)
	assert.InDelta(t, 0.25, table.Weights.At(0, 3), 1e-12)
	assert.Equal(t, reg.IDs(), table.StopIDs)
}

func TestSeed(t *testing.T) {
	reg := grid(t, 6, 2)
	cfg := DefaultConfig()
	cfg.SeedFactor = 3
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)

	prior := aco.Heuristic(reg)
	require.NoError(t, m.Seed(prior))

	table := m.Table()
	assertStochastic(t, table.Weights)
	assertStochastic(t, table.Prior)

	// uniform 1/6 blended with three times the prior, then normalized
	want := (1.0/6 + 3*prior.At(0, 1)) / 4
	assert.InDelta(t, want, table.Weights.At(0, 1), 1e-12)

	assert.Error(t, m.Seed(mat.NewDense(2, 2, nil)))
}

func TestSampleOnlyLegal(t *testing.T) {
	reg := grid(t, 6, 3)
	cfg := DefaultConfig()
	cfg.Exploration = 0.3
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	legal := []int{2, 5}
	for i := 0; i < 200; i++ {
		a := m.Sample(0, legal)
		assert.Contains(t, legal, a)
	}
	assert.Zero(t, m.Fallbacks())
}

func TestSampleFallsBackToUniform(t *testing.T) {
	reg := grid(t, 3, 4)
	cfg := DefaultConfig()
	cfg.Exploration = 0
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)

	table := m.Table()
	table.Weights.SetRow(0, []float64{0, 1, 0, 0})
	require.NoError(t, m.SetTable(table))

	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		a := m.Sample(0, []int{2, 3})
		seen[a] = true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true}, seen)
	assert.Equal(t, 100, m.Fallbacks())
}

func TestGreedyBreaksTiesByDistance(t *testing.T) {
	stops := []stop.Stop{{ID: 0}, {ID: 1, X: 5}, {ID: 2, X: 2}, {ID: 3, X: -2}}
	reg, err := stop.NewRegistry(stops, 0)
	require.NoError(t, err)
	env, _, err := environment.New(reg, stop.Capacity{Weight: 1, Volume: 1})
	require.NoError(t, err)

	m, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)

	// Uniform policy: stops 2 and 3 are both nearest, 2 has the lower index
	assert.Equal(t, 2, m.Greedy(0, env.LegalActions()))

	m.Eval()
	action := m.SelectAction(env.LastTimeStep(), env.LegalActions())
	assert.Equal(t, environment.Move(2), action)
	assert.True(t, m.IsEval())
}

func TestUpdateIsAdvantageConsistent(t *testing.T) {
	reg := grid(t, 8, 5)
	cfg := DefaultConfig()
	cfg.LearningRate = 0.5
	cfg.StagnationEpisodes = 0
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	env, _, err := environment.New(reg, stop.Capacity{Weight: 6, Volume: 6})
	require.NoError(t, err)

	for ep := 0; ep < 40; ep++ {
		traj := episode(t, m, env)
		before := m.Table()

		// Replay the baseline evolution to know each step's advantage
		returns := traj.Returns(cfg.Discount)
		baseline := append([]float64(nil), before.Baseline...)
		observed := append([]bool(nil), before.Observed...)
		advantage := make(map[[2]int]float64)
		for i, tr := range traj {
			if !observed[tr.State] {
				baseline[tr.State], observed[tr.State] = returns[i], true
				continue
			}
			adv := returns[i] - baseline[tr.State]
			advantage[[2]int{tr.State, tr.Action}] = adv
			baseline[tr.State] += cfg.BaselineRate * adv
		}

		require.NoError(t, m.Update(traj))
		after := m.Table()
		assertStochastic(t, after.Weights)

		for key, adv := range advantage {
			s, a := key[0], key[1]
			w0, w1 := before.Weights.At(s, a), after.Weights.At(s, a)
			switch {
			case adv > 0:
				assert.GreaterOrEqual(t, w1, w0-1e-12, "episode %d (%d,%d)", ep, s, a)
			case adv < 0:
				assert.LessOrEqual(t, w1, w0+1e-12, "episode %d (%d,%d)", ep, s, a)
			}
		}
		assert.InDeltaSlice(t, baseline, after.Baseline, 1e-9)
	}
}

func TestUpdateRejectsInvalidTransitions(t *testing.T) {
	reg := grid(t, 3, 6)
	m, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)

	assert.NoError(t, m.Update(nil))
	assert.Error(t, m.Update(timestep.Trajectory{{State: 0, Action: 9}}))
	assert.Error(t, m.Update(timestep.Trajectory{{State: 1, Action: 1}}))
}

func TestStagnationReset(t *testing.T) {
	reg := grid(t, 4, 7)
	cfg := DefaultConfig()
	cfg.StagnationEpisodes = 2
	cfg.ResetBlend = 1
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	good := timestep.Trajectory{
		{State: 0, Action: 1, Reward: -1},
		{State: 1, Action: 2, Reward: -1},
		{State: 2, Action: 3, Reward: -1},
		{State: 3, Action: 4, Reward: -1},
		{State: 4, Action: 0, Reward: -1},
	}
	bad := make(timestep.Trajectory, len(good))
	for i := range good {
		bad[i] = good[i]
		bad[i].Reward = -10
	}

	require.NoError(t, m.Update(good))
	require.NoError(t, m.Update(bad))
	assert.Zero(t, m.Resets())
	require.NoError(t, m.Update(bad))
	assert.Equal(t, 1, m.Resets())

	// A full blend puts every visited state back on its prior
	table := m.Table()
	for s := 0; s < table.Len(); s++ {
		assert.InDeltaSlice(t, table.Prior.RawRowView(s),
			table.Weights.RawRowView(s), 1e-12)
	}
}

func TestConstructShortestOrdering(t *testing.T) {
	stops := []stop.Stop{
		{ID: 0},
		{ID: 1, X: 1, Y: 0, Demand: stop.Demand{Weight: 1, Volume: 1}},
		{ID: 2, X: 0, Y: 3, Demand: stop.Demand{Weight: 1, Volume: 1}},
	}
	reg, err := stop.NewRegistry(stops, 0)
	require.NoError(t, err)
	env, _, err := environment.New(reg, stop.Capacity{
		Weight: math.MaxFloat64, Volume: math.MaxFloat64,
	})
	require.NoError(t, err)

	m, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	rollout, err := m.Construct(env, 10)
	require.NoError(t, err)

	require.Len(t, rollout.Tours, 1)
	assert.Equal(t, stop.Tour{0, 1, 2, 0}, rollout.Tours[0])
	assert.InDelta(t, 1+math.Sqrt(10)+3, rollout.Cost, 1e-12)
	assert.Equal(t, 3, rollout.Steps)
	assert.False(t, m.IsEval())
}

func TestConstructCoversEveryStop(t *testing.T) {
	reg := grid(t, 20, 8)
	capacity := stop.Capacity{Weight: 8, Volume: 8}
	env, _, err := environment.New(reg, capacity)
	require.NoError(t, err)

	m, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	rollout, err := m.Construct(env, 100)
	require.NoError(t, err)
	require.NoError(t, reg.ValidateTours(rollout.Tours, capacity))
	assert.InDelta(t, reg.TotalDistance(rollout.Tours), rollout.Cost, 1e-9)

	_, err = m.Construct(env, 3)
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestTableRoundTrip(t *testing.T) {
	reg := grid(t, 5, 9)
	m, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	env, _, err := environment.New(reg, stop.Capacity{Weight: 5, Volume: 5})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Update(episode(t, m, env)))
	}

	table := m.Table()
	data, err := Encode(table)
	require.NoError(t, err)
	loaded, err := Decode(data)
	require.NoError(t, err)

	assert.True(t, mat.Equal(table.Weights, loaded.Weights))
	assert.True(t, mat.Equal(table.Prior, loaded.Prior))
	assert.Equal(t, table.Baseline, loaded.Baseline)
	assert.Equal(t, table.Observed, loaded.Observed)
	assert.Equal(t, table.StopIDs, loaded.StopIDs)

	other, err := NewManager(reg, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, other.SetTable(loaded))
	assert.Equal(t, m.Baselines(), other.Baselines())

	_, err = Decode(data[:len(data)/2])
	assert.Error(t, err)
}

func TestSetTableMismatch(t *testing.T) {
	m, err := NewManager(grid(t, 3, 10), DefaultConfig())
	require.NoError(t, err)

	assert.Error(t, m.SetTable(NewTable([]int{0, 1, 2})))
	assert.Error(t, m.SetTable(NewTable([]int{0, 1, 2, 7})))

	broken := NewTable([]int{0, 1, 2, 3})
	broken.Weights.Set(0, 1, 5)
	assert.Error(t, m.SetTable(broken))
}

func TestRenormalize(t *testing.T) {
	tests := []struct {
		name      string
		prev, row []float64
		floor     float64
	}{
		{"increases only", []float64{0, 0.5, 0.3, 0.2}, []float64{0, 0.9, 0.6, 0.2}, 0},
		{"increase exceeds mass", []float64{0, 0.6, 0.3, 0.1}, []float64{0, 0.9, 0.6, 0.1}, 0},
		{"decreases only", []float64{0, 0.5, 0.3, 0.2}, []float64{0, 0.1, 0.2, 0.2}, 0},
		{"every entry decreased", []float64{0, 0.5, 0.5}, []float64{0, 0.1, 0.2}, 0},
		{"mixed", []float64{0, 0.4, 0.4, 0.2}, []float64{0, 0.7, 0.1, 0.2}, 0},
		{"gain above floor", []float64{0, 0.25, 0.25, 0.25, 0.25}, []float64{0, 7, 0.25, 0.25, 0.25}, 1e-4},
		{"mixed above floor", []float64{0, 0.4, 0.4, 0.2}, []float64{0, 1.5, 0.1, 0.2}, 0.15},
		{"small gain with floor", []float64{0, 0.4, 0.4, 0.2}, []float64{0, 0.5, 0.4, 0.2}, 0.1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			row := append([]float64(nil), test.row...)
			renormalize(row, test.prev, 0, test.floor)

			assert.InDelta(t, 1.0, floats.Sum(row), 1e-12)
			for j := 1; j < len(row); j++ {
				assert.GreaterOrEqual(t, row[j], 0.0)
				switch {
				case test.row[j] > test.prev[j]:
					assert.GreaterOrEqual(t, row[j], test.prev[j]-1e-12)
				default:
					assert.LessOrEqual(t, row[j], test.prev[j]+1e-12)
					assert.GreaterOrEqual(t, row[j],
						math.Min(test.row[j], test.floor)-1e-12)
				}
			}
		})
	}

	// Entries which were not increased end exactly on the floor when the
	// gain outweighs them
	row := []float64{0, 7, 0.25, 0.25, 0.25}
	renormalize(row, []float64{0, 0.25, 0.25, 0.25, 0.25}, 0, 1e-4)
	assert.InDeltaSlice(t, []float64{0, 1 - 3e-4, 1e-4, 1e-4, 1e-4}, row, 1e-12)
}

func TestUpdateKeepsMinWeight(t *testing.T) {
	reg := grid(t, 4, 1)
	cfg := DefaultConfig()
	cfg.LearningRate = 5
	cfg.Exploration = 0
	cfg.StagnationEpisodes = 0
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)

	for _, ret := range []float64{-20, -2, -1, -0.5, -30} {
		before := append([]float64(nil), m.Table().Weights.RawRowView(0)...)
		require.NoError(t, m.Update(timestep.Trajectory{
			{State: 0, Action: 1, Reward: ret},
		}))

		after := m.Table()
		assertStochastic(t, after.Weights)
		for j := 1; j < after.Len(); j++ {
			assert.GreaterOrEqual(t, after.Weights.At(0, j),
				math.Min(before[j], cfg.MinWeight)-1e-12, "return %v stop %d",
				ret, j)
		}
	}

	// Every other stop keeps some mass, so sampling never falls back
	for i := 0; i < 50; i++ {
		assert.Contains(t, []int{2, 3, 4}, m.Sample(0, []int{2, 3, 4}))
	}
	assert.Zero(t, m.Fallbacks())
}

func TestUpdateScalesGoodAndBadEpisodes(t *testing.T) {
	reg := grid(t, 4, 1)
	cfg := DefaultConfig()
	cfg.MinWeight = 0
	cfg.StagnationEpisodes = 0

	// move returns the change in the weight of moving from the depot to
	// stop 1 after an episode of return ret, starting from a baseline of
	// -10
	move := func(ret float64) float64 {
		m, err := NewManager(reg, cfg)
		require.NoError(t, err)
		require.NoError(t, m.Update(timestep.Trajectory{
			{State: 0, Action: 1, Reward: -10},
		}))
		w0 := m.Table().Weights.At(0, 1)

		require.NoError(t, m.Update(timestep.Trajectory{
			{State: 0, Action: 1, Reward: ret},
		}))
		return m.Table().Weights.At(0, 1) - w0
	}

	// Advantages of +2 and -2 against the baseline of the start state
	good, bad := move(-8), move(-12)
	assert.InDelta(t, cfg.LearningRate*cfg.GoodScale*2/10, good, 1e-12)
	assert.InDelta(t, -cfg.LearningRate*cfg.BadScale*2/10, bad, 1e-12)
	assert.InDelta(t, cfg.GoodScale/cfg.BadScale, -good/bad, 1e-9)
}

func TestUpdateSkipsForcedReturns(t *testing.T) {
	reg := grid(t, 4, 2)
	cfg := DefaultConfig()
	cfg.StagnationEpisodes = 0
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))

	traj := func(r float64) timestep.Trajectory {
		return timestep.Trajectory{
			{State: 0, Action: 1, Reward: r},
			{State: 1, Action: 0, Reward: r},
			{State: 0, Action: 2, Reward: r},
			{State: 2, Action: 0, Reward: r},
		}
	}
	require.NoError(t, m.Update(traj(-1)))
	before := m.Table()
	require.NoError(t, m.Update(traj(-0.5)))
	after := m.Table()

	for _, s := range []int{1, 2} {
		assert.Equal(t, before.Weights.RawRowView(s), after.Weights.RawRowView(s),
			"state %d", s)
		assert.Greater(t, after.Baseline[s], before.Baseline[s], "state %d", s)
	}
	assert.Greater(t, after.Weights.At(0, 2), before.Weights.At(0, 2))

	baselines := m.Baselines()
	assert.Len(t, baselines, 3)
	assert.Equal(t, after.Baseline[1], baselines[reg.Stop(1).ID])
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	mutations := []func(*Config){
		func(c *Config) { c.LearningRate = 0 },
		func(c *Config) { c.Discount = 1.5 },
		func(c *Config) { c.BaselineRate = 0 },
		func(c *Config) { c.BadScale = 0 },
		func(c *Config) { c.SeedFactor = -1 },
		func(c *Config) { c.Exploration = 2 },
		func(c *Config) { c.MinWeight = 1 },
		func(c *Config) { c.StagnationEpisodes = -1 },
		func(c *Config) { c.ResetBlend = 1.1 },
	}
	for i, mutate := range mutations {
		c := DefaultConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), "mutation %d", i)
	}
}
