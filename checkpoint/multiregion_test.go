package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexusone/agentcore-runtime/logger"
)

// stubSaver records calls and fails on demand.
type stubSaver struct {
	puts       []Checkpoint
	putWrites  [][]PendingWrite
	deletes    []string
	gets       int
	lists      int
	failPut    error
	failWrites error
	failDelete error
	latest     *Checkpoint
}

func (s *stubSaver) Get(_ context.Context, _ Config) (*Checkpoint, error) {
	s.gets++
	return s.latest, nil
}

func (s *stubSaver) List(_ context.Context, _ Config, _ ListOptions) ([]Checkpoint, error) {
	s.lists++
	if s.latest == nil {
		return nil, nil
	}
	return []Checkpoint{*s.latest}, nil
}

func (s *stubSaver) Put(_ context.Context, _ Config, ckpt Checkpoint) error {
	if s.failPut != nil {
		return s.failPut
	}
	s.puts = append(s.puts, ckpt)
	return nil
}

func (s *stubSaver) PutWrites(_ context.Context, _ Config, _ string, writes []PendingWrite) error {
	if s.failWrites != nil {
		return s.failWrites
	}
	s.putWrites = append(s.putWrites, writes)
	return nil
}

func (s *stubSaver) DeleteThread(_ context.Context, threadID, _ string) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	s.deletes = append(s.deletes, threadID)
	return nil
}

func newTestMultiRegionSaver() (*MultiRegionSaver, *stubSaver, *stubSaver) {
	logger.Init("error")
	primary := &stubSaver{}
	secondary := &stubSaver{}
	return NewMultiRegionSaver(primary, secondary, "us-west-2", "eu-west-1"), primary, secondary
}

func testCheckpoint(step int) Checkpoint {
	return Checkpoint{
		ID:    "ckpt-" + strconv.Itoa(step),
		Step:  step,
		State: json.RawMessage(`{"messages":[]}`),
	}
}

func TestMultiRegionSaverPutWritesBothRegions(t *testing.T) {
	saver, primary, secondary := newTestMultiRegionSaver()
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}

	err := saver.Put(context.Background(), cfg, testCheckpoint(1))
	require.NoError(t, err)

	assert.Len(t, primary.puts, 1)
	assert.Len(t, secondary.puts, 1)
	assert.Equal(t, primary.puts[0], secondary.puts[0])
}

func TestMultiRegionSaverPutPrimaryFailureSkipsSecondary(t *testing.T) {
	saver, primary, secondary := newTestMultiRegionSaver()
	primary.failPut = errors.New("throttled")

	err := saver.Put(context.Background(), Config{ThreadID: "t"}, testCheckpoint(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "us-west-2")
	assert.Empty(t, secondary.puts)
}

func TestMultiRegionSaverPutSecondaryFailureFailsOperation(t *testing.T) {
	saver, primary, secondary := newTestMultiRegionSaver()
	secondary.failPut = errors.New("region unavailable")

	err := saver.Put(context.Background(), Config{ThreadID: "t"}, testCheckpoint(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eu-west-1")
	// Primary write already happened: the regions are now inconsistent and
	// the caller must see a failure.
	assert.Len(t, primary.puts, 1)
}

func TestMultiRegionSaverReadsPrimaryOnly(t *testing.T) {
	saver, primary, secondary := newTestMultiRegionSaver()
	ckpt := testCheckpoint(3)
	primary.latest = &ckpt

	got, err := saver.Get(context.Background(), Config{ThreadID: "t"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ckpt-3", got.ID)
	assert.Equal(t, 0, secondary.gets)

	_, err = saver.List(context.Background(), Config{ThreadID: "t"}, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, secondary.lists)
}

func TestMultiRegionSaverPutWritesFansOut(t *testing.T) {
	saver, primary, secondary := newTestMultiRegionSaver()
	writes := []PendingWrite{{Channel: "messages", Value: json.RawMessage(`"hi"`)}}

	err := saver.PutWrites(context.Background(), Config{ThreadID: "t"}, "task-1", writes)
	require.NoError(t, err)
	assert.Len(t, primary.putWrites, 1)
	assert.Len(t, secondary.putWrites, 1)
}

func TestMultiRegionSaverDeleteThreadBothRegions(t *testing.T) {
	saver, primary, secondary := newTestMultiRegionSaver()

	err := saver.DeleteThread(context.Background(), "thread-9", "actor-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"thread-9"}, primary.deletes)
	assert.Equal(t, []string{"thread-9"}, secondary.deletes)

	secondary.failDelete = errors.New("boom")
	err = saver.DeleteThread(context.Background(), "thread-9", "actor-1")
	require.Error(t, err)
}
