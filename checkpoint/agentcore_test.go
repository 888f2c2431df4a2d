package checkpoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory is an in-process stand-in for the AgentCore Memory data plane.
type fakeMemory struct {
	events  []types.Event
	deleted []string
	nextID  int
}

func (f *fakeMemory) CreateEvent(_ context.Context, in *bedrockagentcore.CreateEventInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error) {
	f.nextID++
	ev := types.Event{
		EventId:   aws.String(aws.ToString(in.SessionId) + "-" + string(rune('a'+f.nextID))),
		SessionId: in.SessionId,
		ActorId:   in.ActorId,
		MemoryId:  in.MemoryId,
		Payload:   in.Payload,
	}
	f.events = append(f.events, ev)
	return &bedrockagentcore.CreateEventOutput{Event: &ev}, nil
}

func (f *fakeMemory) ListEvents(_ context.Context, in *bedrockagentcore.ListEventsInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error) {
	var out []types.Event
	for _, ev := range f.events {
		if aws.ToString(ev.SessionId) == aws.ToString(in.SessionId) &&
			aws.ToString(ev.ActorId) == aws.ToString(in.ActorId) {
			out = append(out, ev)
		}
	}
	return &bedrockagentcore.ListEventsOutput{Events: out}, nil
}

func (f *fakeMemory) DeleteEvent(_ context.Context, in *bedrockagentcore.DeleteEventInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.DeleteEventOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.EventId))
	kept := f.events[:0]
	for _, ev := range f.events {
		if aws.ToString(ev.EventId) != aws.ToString(in.EventId) {
			kept = append(kept, ev)
		}
	}
	f.events = kept
	return &bedrockagentcore.DeleteEventOutput{}, nil
}

func TestAgentCoreSaverRoundTrip(t *testing.T) {
	mem := &fakeMemory{}
	saver := newAgentCoreSaverWithClient(mem, "mem-123", "us-west-2")
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(1)))
	require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(2)))

	got, err := saver.Get(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Step)
	assert.Equal(t, "ckpt-2", got.ID)
	assert.JSONEq(t, `{"messages":[]}`, string(got.State))
}

func TestAgentCoreSaverDefaultsActorID(t *testing.T) {
	mem := &fakeMemory{}
	saver := newAgentCoreSaverWithClient(mem, "mem-123", "us-west-2")
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, Config{ThreadID: "thread-1"}, testCheckpoint(1)))
	require.Len(t, mem.events, 1)
	assert.Equal(t, "agent-1", aws.ToString(mem.events[0].ActorId))
}

func TestAgentCoreSaverSkipsWriteEvents(t *testing.T) {
	mem := &fakeMemory{}
	saver := newAgentCoreSaverWithClient(mem, "mem-123", "us-west-2")
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}
	ctx := context.Background()

	require.NoError(t, saver.PutWrites(ctx, cfg, "task-1", []PendingWrite{
		{Channel: "messages", Value: json.RawMessage(`"partial"`)},
	}))
	require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(1)))

	cps, err := saver.List(ctx, cfg, ListOptions{})
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, 1, cps[0].Step)
}

func TestAgentCoreSaverGetLatestAcrossTurns(t *testing.T) {
	mem := &fakeMemory{}
	saver := newAgentCoreSaverWithClient(mem, "mem-123", "us-west-2")
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}
	ctx := context.Background()

	// Two invocations that each wrote a checkpoint at the same step number.
	// The newer one must still win.
	older := testCheckpoint(1)
	older.ID = "turn-1"
	older.CreatedAt = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := testCheckpoint(1)
	newer.ID = "turn-2"
	newer.CreatedAt = time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)

	require.NoError(t, saver.Put(ctx, cfg, older))
	require.NoError(t, saver.Put(ctx, cfg, newer))

	got, err := saver.Get(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "turn-2", got.ID)
}

func TestAgentCoreSaverDeleteThread(t *testing.T) {
	mem := &fakeMemory{}
	saver := newAgentCoreSaverWithClient(mem, "mem-123", "us-west-2")
	cfg := Config{ThreadID: "thread-1", ActorID: "actor-1"}
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(1)))
	require.NoError(t, saver.Put(ctx, cfg, testCheckpoint(2)))

	require.NoError(t, saver.DeleteThread(ctx, "thread-1", "actor-1"))
	assert.Len(t, mem.deleted, 2)

	got, err := saver.Get(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, got)
}
