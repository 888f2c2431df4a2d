// Package bedrock wraps the Bedrock Converse API behind JSON-friendly
// message and tool types.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// ToolSpec declares a tool the model may call. Schema is a JSON Schema
// object describing the tool input.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// converseAPI is the subset of the Bedrock runtime client the model uses.
type converseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Model invokes one Bedrock model via the Converse API.
type Model struct {
	client  converseAPI
	modelID string
}

// NewModel builds a model client for the given region, loading AWS
// credentials from the default chain.
func NewModel(ctx context.Context, modelID, region string) (*Model, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for %s: %w", region, err)
	}
	return &Model{client: bedrockruntime.NewFromConfig(awsCfg), modelID: modelID}, nil
}

// newModelWithClient is used by tests.
func newModelWithClient(client converseAPI, modelID string) *Model {
	return &Model{client: client, modelID: modelID}
}

// Invoke sends the conversation to the model and returns its reply. The
// reply may carry tool calls; executing them and re-invoking is the
// caller's loop.
func (m *Model) Invoke(ctx context.Context, system string, msgs []Message, tools []ToolSpec) (Message, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(m.modelID),
		Messages: toSDKMessages(msgs),
	}
	if system != "" {
		in.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}
	if len(tools) > 0 {
		in.ToolConfig = toToolConfig(tools)
	}

	out, err := m.client.Converse(ctx, in)
	if err != nil {
		return Message{}, fmt.Errorf("invoking model %s: %w", m.modelID, err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return Message{}, fmt.Errorf("unexpected converse output type %T", out.Output)
	}
	return fromSDKMessage(msg.Value)
}

func toSDKMessages(msgs []Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleTool:
			// Tool results ride in a user-role message per the
			// Converse conversation rules.
			out = append(out, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: m.Content},
						},
						Status: types.ToolResultStatusSuccess,
					}},
				},
			})
		case RoleAssistant:
			var blocks []types.ContentBlock
			if m.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(tc.Args),
				}})
			}
			out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
		default:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return out
}

func fromSDKMessage(msg types.Message) (Message, error) {
	out := Message{Role: RoleAssistant}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			tc := ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Name: aws.ToString(b.Value.Name),
			}
			if b.Value.Input != nil {
				// Smithy documents only unmarshal into maps and
				// scalars, so go through the raw JSON.
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return Message{}, fmt.Errorf("reading tool input for %s: %w", tc.Name, err)
				}
				if err := json.Unmarshal(raw, &tc.Args); err != nil {
					return Message{}, fmt.Errorf("decoding tool input for %s: %w", tc.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, tc)
		}
	}
	out.Content = text.String()
	return out, nil
}

func toToolConfig(tools []ToolSpec) *types.ToolConfiguration {
	cfg := &types.ToolConfiguration{}
	for _, t := range tools {
		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Schema)},
		}})
	}
	return cfg
}

// ModelIDForRegion maps a region to the matching cross-region inference
// profile for the default chat model. US regions use the "us." prefix, EU
// regions "eu.", AP regions "apac.".
func ModelIDForRegion(region string) (string, error) {
	const base = "anthropic.claude-haiku-4-5-20251001-v1:0"
	switch {
	case strings.HasPrefix(region, "us-"):
		return "us." + base, nil
	case strings.HasPrefix(region, "eu-"):
		return "eu." + base, nil
	case strings.HasPrefix(region, "ap-"):
		return "apac." + base, nil
	default:
		return "", fmt.Errorf("unsupported region: %s", region)
	}
}
