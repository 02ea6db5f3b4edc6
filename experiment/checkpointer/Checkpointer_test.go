package checkpointer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samuelfneumann/vrprl/agent/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	names []string
	err   error
}

func (m *memorySaver) Save(_ context.Context, model string, _ *policy.Table) error {
	m.names = append(m.names, model)
	return m.err
}

func TestNStep(t *testing.T) {
	saver := &memorySaver{}
	table := policy.NewTable([]int{0, 1, 2})
	ckpt := NewNStep(2, func() *policy.Table { return table }, saver,
		NameEnumerator(0, "model"))

	for ep := 1; ep <= 5; ep++ {
		require.NoError(t, ckpt.Checkpoint(context.Background(), ep))
	}
	assert.Equal(t, []string{"model-1", "model-2"}, saver.names)

	saver.err = errors.New("disk full")
	assert.Error(t, ckpt.Checkpoint(context.Background(), 6))

	assert.Panics(t, func() { NewNStep(0, nil, saver, FixedName("m")) })
}

func TestNames(t *testing.T) {
	assert.Equal(t, "latest", FixedName("latest")())
	assert.True(t, strings.HasPrefix(NameTimer("model")(), "model-"))

	next := NameEnumerator(3, "m")
	assert.Equal(t, "m-4", next())
	assert.Equal(t, "m-5", next())
}
