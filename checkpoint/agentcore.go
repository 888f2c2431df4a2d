package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"
	"github.com/google/uuid"
)

// memoryAPI is the subset of the AgentCore Memory data plane the saver uses.
type memoryAPI interface {
	CreateEvent(ctx context.Context, in *bedrockagentcore.CreateEventInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error)
	ListEvents(ctx context.Context, in *bedrockagentcore.ListEventsInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error)
	DeleteEvent(ctx context.Context, in *bedrockagentcore.DeleteEventInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.DeleteEventOutput, error)
}

// AgentCoreSaver persists checkpoints as blob-payload events in an AgentCore
// Memory resource. Thread and actor IDs map to memory session and actor IDs.
type AgentCoreSaver struct {
	client   memoryAPI
	memoryID string
	region   string
}

var _ Saver = (*AgentCoreSaver)(nil)

// NewAgentCoreSaver builds a saver against the given memory in the given
// region, loading AWS credentials from the default chain.
func NewAgentCoreSaver(ctx context.Context, memoryID, region string) (*AgentCoreSaver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for %s: %w", region, err)
	}
	return &AgentCoreSaver{
		client:   bedrockagentcore.NewFromConfig(awsCfg),
		memoryID: memoryID,
		region:   region,
	}, nil
}

// newAgentCoreSaverWithClient is used by tests.
func newAgentCoreSaverWithClient(client memoryAPI, memoryID, region string) *AgentCoreSaver {
	return &AgentCoreSaver{client: client, memoryID: memoryID, region: region}
}

// eventEnvelope is the content stored per memory event. The whole envelope
// travels as one JSON string inside the blob document: Smithy documents
// round-trip scalars and maps, not Go structs.
type eventEnvelope struct {
	Kind         string `json:"kind"` // "checkpoint" or "writes"
	CheckpointID string `json:"checkpoint_id,omitempty"`
	Step         int    `json:"step,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	StateJSON    string `json:"state_json,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	WritesJSON   string `json:"writes_json,omitempty"`
}

func (s *AgentCoreSaver) Get(ctx context.Context, cfg Config) (*Checkpoint, error) {
	cps, err := s.List(ctx, cfg, ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, nil
	}
	return &cps[0], nil
}

func (s *AgentCoreSaver) List(ctx context.Context, cfg Config, opts ListOptions) ([]Checkpoint, error) {
	var out []Checkpoint
	var nextToken *string
	for {
		resp, err := s.client.ListEvents(ctx, &bedrockagentcore.ListEventsInput{
			MemoryId:        aws.String(s.memoryID),
			SessionId:       aws.String(cfg.ThreadID),
			ActorId:         aws.String(actorOrDefault(cfg.ActorID)),
			IncludePayloads: aws.Bool(true),
			NextToken:       nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("listing events in %s: %w", s.region, err)
		}
		for _, ev := range resp.Events {
			ckpt, ok := decodeCheckpointEvent(ev)
			if !ok {
				continue
			}
			out = append(out, ckpt)
		}
		if resp.NextToken == nil {
			break
		}
		nextToken = resp.NextToken
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Step > out[j].Step
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *AgentCoreSaver) Put(ctx context.Context, cfg Config, ckpt Checkpoint) error {
	env := eventEnvelope{
		Kind:         "checkpoint",
		CheckpointID: ckpt.ID,
		Step:         ckpt.Step,
		CreatedAt:    ckpt.CreatedAt.UTC().Format(time.RFC3339Nano),
		StateJSON:    string(ckpt.State),
	}
	return s.createEvent(ctx, cfg, env)
}

func (s *AgentCoreSaver) PutWrites(ctx context.Context, cfg Config, taskID string, writes []PendingWrite) error {
	data, err := json.Marshal(writes)
	if err != nil {
		return fmt.Errorf("encoding writes: %w", err)
	}
	env := eventEnvelope{
		Kind:       "writes",
		TaskID:     taskID,
		WritesJSON: string(data),
	}
	return s.createEvent(ctx, cfg, env)
}

func (s *AgentCoreSaver) DeleteThread(ctx context.Context, threadID, actorID string) error {
	var nextToken *string
	for {
		resp, err := s.client.ListEvents(ctx, &bedrockagentcore.ListEventsInput{
			MemoryId:  aws.String(s.memoryID),
			SessionId: aws.String(threadID),
			ActorId:   aws.String(actorOrDefault(actorID)),
			NextToken: nextToken,
		})
		if err != nil {
			return fmt.Errorf("listing events in %s: %w", s.region, err)
		}
		for _, ev := range resp.Events {
			_, err := s.client.DeleteEvent(ctx, &bedrockagentcore.DeleteEventInput{
				MemoryId:  aws.String(s.memoryID),
				SessionId: aws.String(threadID),
				ActorId:   aws.String(actorOrDefault(actorID)),
				EventId:   ev.EventId,
			})
			if err != nil {
				return fmt.Errorf("deleting event %s in %s: %w", aws.ToString(ev.EventId), s.region, err)
			}
		}
		if resp.NextToken == nil {
			return nil
		}
		nextToken = resp.NextToken
	}
}

func (s *AgentCoreSaver) createEvent(ctx context.Context, cfg Config, env eventEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}
	_, err = s.client.CreateEvent(ctx, &bedrockagentcore.CreateEventInput{
		MemoryId:       aws.String(s.memoryID),
		SessionId:      aws.String(cfg.ThreadID),
		ActorId:        aws.String(actorOrDefault(cfg.ActorID)),
		EventTimestamp: aws.Time(time.Now()),
		ClientToken:    aws.String(uuid.NewString()),
		Payload: []types.PayloadType{
			&types.PayloadTypeMemberBlob{Value: document.NewLazyDocument(string(data))},
		},
	})
	if err != nil {
		return fmt.Errorf("creating event in %s: %w", s.region, err)
	}
	return nil
}

func decodeCheckpointEvent(ev types.Event) (Checkpoint, bool) {
	for _, payload := range ev.Payload {
		blob, ok := payload.(*types.PayloadTypeMemberBlob)
		if !ok || blob.Value == nil {
			continue
		}
		raw, err := blob.Value.MarshalSmithyDocument()
		if err != nil {
			continue
		}
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			continue
		}
		var env eventEnvelope
		if err := json.Unmarshal([]byte(encoded), &env); err != nil {
			continue
		}
		if env.Kind != "checkpoint" {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, env.CreatedAt)
		return Checkpoint{
			ID:        env.CheckpointID,
			Step:      env.Step,
			CreatedAt: createdAt,
			State:     json.RawMessage(env.StateJSON),
		}, true
	}
	return Checkpoint{}, false
}

// AgentCore Memory requires a non-empty actor ID.
func actorOrDefault(actorID string) string {
	if actorID == "" {
		return "agent-1"
	}
	return actorID
}
