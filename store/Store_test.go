package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/samuelfneumann/vrprl/aco"
	"github.com/samuelfneumann/vrprl/agent/policy"
	"github.com/samuelfneumann/vrprl/stop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func manager(t *testing.T) (*stop.Registry, *policy.Manager) {
	t.Helper()
	stops := []stop.Stop{
		{ID: 1},
		{ID: 2, X: 1, Y: 2, Demand: stop.Demand{Weight: 1, Volume: 1}},
		{ID: 3, X: 4, Y: 1, Demand: stop.Demand{Weight: 2, Volume: 1}},
		{ID: 4, X: 2, Y: 5, Demand: stop.Demand{Weight: 1, Volume: 3}},
	}
	reg, err := stop.NewRegistry(stops, 1)
	require.NoError(t, err)

	m, err := policy.NewManager(reg, policy.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Seed(aco.Heuristic(reg)))
	return reg, m
}

// roundTrip saves a table, loads it back, and checks that every state
// has the same distribution
func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	reg, m := manager(t)

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	table := m.Table()
	require.NoError(t, s.Save(ctx, "model", table))

	loaded, err := s.Load(ctx, "model")
	require.NoError(t, err)
	assert.True(t, mat.Equal(table.Weights, loaded.Weights))
	assert.True(t, mat.Equal(table.Prior, loaded.Prior))
	assert.Equal(t, table.StopIDs, loaded.StopIDs)

	// Saving again replaces the table
	table.Weights.SetRow(0, []float64{0, 1, 0, 0})
	require.NoError(t, s.Save(ctx, "model", table))
	loaded, err = s.Load(ctx, "model")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0}, loaded.Row(0))

	other, err := policy.NewManager(reg, policy.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, Restore(ctx, s, "model", other))
	assert.Equal(t, []float64{0, 1, 0, 0}, other.Table().Row(0))
	assert.False(t, Restore(ctx, s, "missing", other))

	assert.Error(t, s.Save(ctx, "", table))
	assert.Error(t, s.Save(ctx, "a/b", table))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), "file://"+dir)
	require.NoError(t, err)
	defer s.Close()

	roundTrip(t, s)

	// Corrupt files fall back to seeding
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.gob"),
		[]byte("not a table"), 0o644))
	_, err = s.Load(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, m := manager(t)
	before := m.Table()
	assert.False(t, Restore(context.Background(), s, "broken", m))
	assert.True(t, mat.Equal(before.Weights, m.Table().Weights))
}

func TestRestoreMismatchedStops(t *testing.T) {
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "other", policy.NewTable([]int{7, 8, 9})))

	_, m := manager(t)
	assert.False(t, Restore(ctx, s, "other", m))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.db")
	s, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer s.Close()

	roundTrip(t, s)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	roundTrip(t, s)
	assert.True(t, mr.Exists(keyPrefix+"model"))
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("VRPRL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VRPRL_TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()

	roundTrip(t, s)
}

func TestOpenEmpty(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
