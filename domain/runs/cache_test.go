package runs

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/modelforge/domain/compiler"
	"github.com/emergent-company/modelforge/pkg/logger"
)

func testState() *compiler.ProblemState {
	s := compiler.NewProblemState()
	s.Index.Set("Shelf auto1", 1)
	return s
}

func TestCache_LookupOrCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewCache(store, logger.Discard())

	id, isNew, err := c.LookupOrCreate(ctx, "abc", "model text", testState())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, uuid.Nil, id)

	again, isNew, err := c.LookupOrCreate(ctx, "abc", "model text", testState())
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id, again)

	other, isNew, err := c.LookupOrCreate(ctx, "def", "other text", testState())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, id, other)

	run, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "model text", run.Model)
	assert.JSONEq(t, `{"Shelf auto1":1}`, string(run.IndexMap))
	assert.False(t, run.Ran)
	assert.False(t, run.Solved)

	state, err := compiler.DecodeState(run.ProblemState)
	require.NoError(t, err)
	idx, ok := state.IndexOf("Shelf auto1")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestCache_ConcurrentRequestsShareOneRun(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore(), logger.Discard())

	const n = 16
	ids := make([]uuid.UUID, n)
	news := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, isNew, err := c.LookupOrCreate(ctx, "same", "text", testState())
			assert.NoError(t, err)
			ids[i], news[i] = id, isNew
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if news[i] {
			created++
		}
	}
	assert.Equal(t, 1, created)
}
