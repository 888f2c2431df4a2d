package checkpoint

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaverGetEmptyThread(t *testing.T) {
	saver := NewMemorySaver()

	got, err := saver.Get(context.Background(), Config{ThreadID: "missing"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySaverPutGetLatest(t *testing.T) {
	saver := NewMemorySaver()
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}

	for step := 1; step <= 3; step++ {
		require.NoError(t, saver.Put(context.Background(), cfg, testCheckpoint(step)))
	}

	got, err := saver.Get(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Step)
}

func TestMemorySaverThreadsAreIsolated(t *testing.T) {
	saver := NewMemorySaver()
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, Config{ThreadID: "a", ActorID: "u1"}, testCheckpoint(1)))

	got, err := saver.Get(ctx, Config{ThreadID: "a", ActorID: "u2"})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = saver.Get(ctx, Config{ThreadID: "b", ActorID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySaverListNewestFirstWithLimit(t *testing.T) {
	saver := NewMemorySaver()
	cfg := Config{ThreadID: "thread-1"}
	ctx := context.Background()

	for step := 1; step <= 5; step++ {
		require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(step)))
	}

	cps, err := saver.List(ctx, cfg, ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, 5, cps[0].Step)
	assert.Equal(t, 4, cps[1].Step)
}

func TestMemorySaverDeleteThread(t *testing.T) {
	saver := NewMemorySaver()
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(1)))
	require.NoError(t, saver.PutWrites(ctx, cfg, "task-1", []PendingWrite{
		{Channel: "messages", Value: json.RawMessage(`"x"`)},
	}))

	require.NoError(t, saver.DeleteThread(ctx, "thread-1", "actor-1"))

	got, err := saver.Get(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, got)
}
