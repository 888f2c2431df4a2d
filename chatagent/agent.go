// Package chatagent implements a checkpointed conversational agent: thread
// history is restored from the configured saver before each turn and
// persisted after it, which is what makes multi-region memory replication
// observable across runtimes.
package chatagent

import (
	"context"
	"fmt"

	"github.com/plexusone/agentcore-runtime/bedrock"
	"github.com/plexusone/agentcore-runtime/checkpoint"
	"github.com/plexusone/agentcore-runtime/graph"
)

// State is the conversation state persisted per thread.
type State struct {
	Messages []bedrock.Message `json:"messages"`
}

type llm interface {
	Invoke(ctx context.Context, system string, msgs []bedrock.Message, tools []bedrock.ToolSpec) (bedrock.Message, error)
}

// Agent is a single-node chat graph with a checkpointer.
type Agent struct {
	compiled *graph.Compiled[State]
}

// New builds the agent around a model and a checkpoint saver.
func New(model *bedrock.Model, saver checkpoint.Saver) (*Agent, error) {
	return newWithLLM(model, saver)
}

func newWithLLM(model llm, saver checkpoint.Saver) (*Agent, error) {
	g := graph.New[State]().
		AddNode("chat", func(ctx context.Context, s State) (State, error) {
			reply, err := model.Invoke(ctx, "", s.Messages, nil)
			if err != nil {
				return s, err
			}
			s.Messages = append(s.Messages, reply)
			return s, nil
		}).
		AddEdge("chat", graph.End)

	compiled, err := g.Compile(graph.Options[State]{
		Checkpointer: saver,
		Merge: func(restored, input State) State {
			restored.Messages = append(restored.Messages, input.Messages...)
			return restored
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compiling chat agent graph: %w", err)
	}
	return &Agent{compiled: compiled}, nil
}

// Reply is the invocation response body for one chat turn.
type Reply struct {
	Result string `json:"result"`
}

// Invoke appends the prompt as a user turn, runs the model, and returns the
// assistant reply. History accumulates per thread via the checkpointer.
func (a *Agent) Invoke(ctx context.Context, prompt, threadID, actorID string) (string, error) {
	input := State{Messages: []bedrock.Message{bedrock.UserMessage(prompt)}}
	final, err := a.compiled.Invoke(ctx, input, graph.Config{ThreadID: threadID, ActorID: actorID})
	if err != nil {
		return "", err
	}
	if len(final.Messages) == 0 {
		return "", fmt.Errorf("model produced no messages")
	}
	return final.Messages[len(final.Messages)-1].Content, nil
}
