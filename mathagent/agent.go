// Package mathagent implements a worker/evaluator agent for math questions.
// The worker solves the problem with arithmetic tools, then an evaluator
// reviews the worker's answer.
package mathagent

import (
	"context"
	"fmt"

	"github.com/plexusone/agentcore-runtime/bedrock"
	"github.com/plexusone/agentcore-runtime/graph"
)

const workerPrompt = `You are a mathematical worker agent.
Your job is to solve math problems using the available tools: add_numbers, subtract_numbers,
multiply_numbers, and divide_numbers. Break down complex problems step by step.
Use tools to perform calculations and show your work.`

const evaluatorPromptFmt = `You are an evaluation agent that checks mathematical work.
Review the worker's calculations and verify they are correct.

Worker's output: %s

Check:
1. Are the calculation steps logical?
2. Are the tool calls appropriate?
3. Is the final answer correct?

If everything is correct, approve it. If there are errors, point them out.`

// State is the shared graph state for one question.
type State struct {
	Messages         []bedrock.Message `json:"messages"`
	WorkerOutput     string            `json:"worker_output"`
	EvaluationResult string            `json:"evaluation_result"`
}

// llm abstracts the model so tests can run without Bedrock.
type llm interface {
	Invoke(ctx context.Context, system string, msgs []bedrock.Message, tools []bedrock.ToolSpec) (bedrock.Message, error)
}

// Agent wires the worker/evaluator graph around a model.
type Agent struct {
	model    llm
	compiled *graph.Compiled[State]
}

// New builds the agent graph around the given model.
func New(model *bedrock.Model) (*Agent, error) {
	return newWithLLM(model)
}

func newWithLLM(model llm) (*Agent, error) {
	a := &Agent{model: model}
	specs, funcs := mathTools()

	g := graph.New[State]().
		AddNode("worker", a.workerNode(specs)).
		AddNode("tools", toolNode(funcs)).
		AddNode("evaluator", a.evaluatorNode).
		SetEntry("worker").
		AddConditionalEdge("worker", routeAfterWorker).
		AddEdge("tools", "worker").
		AddEdge("evaluator", graph.End)

	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling math agent graph: %w", err)
	}
	a.compiled = compiled
	return a, nil
}

// workerNode asks the model to solve the problem, offering the math tools.
// Worker output is only recorded once the model stops requesting tools, so
// routing does not jump to the evaluator after the first tool-use turn.
func (a *Agent) workerNode(specs []bedrock.ToolSpec) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) (State, error) {
		reply, err := a.model.Invoke(ctx, workerPrompt, s.Messages, specs)
		if err != nil {
			return s, err
		}
		s.Messages = append(s.Messages, reply)
		if len(reply.ToolCalls) == 0 {
			s.WorkerOutput = reply.Content
		}
		return s, nil
	}
}

// toolNode executes every tool call from the last assistant message.
func toolNode(funcs map[string]toolFunc) graph.NodeFunc[State] {
	return func(_ context.Context, s State) (State, error) {
		if len(s.Messages) == 0 {
			return s, nil
		}
		last := s.Messages[len(s.Messages)-1]
		for _, call := range last.ToolCalls {
			fn, ok := funcs[call.Name]
			var result string
			if !ok {
				result = fmt.Sprintf("Tool %s not found", call.Name)
			} else {
				out, err := fn(call.Args)
				if err != nil {
					result = fmt.Sprintf("Error: %v", err)
				} else {
					result = out
				}
			}
			s.Messages = append(s.Messages, bedrock.ToolResultMessage(call.ID, call.Name, result))
		}
		return s, nil
	}
}

// evaluatorNode reviews the worker's answer with a tight context so the
// evaluator evaluates instead of continuing to solve.
func (a *Agent) evaluatorNode(ctx context.Context, s State) (State, error) {
	question := ""
	if len(s.Messages) > 0 && s.Messages[0].Role == bedrock.RoleUser {
		question = s.Messages[0].Content
	}

	prompt := fmt.Sprintf(evaluatorPromptFmt, s.WorkerOutput)
	msgs := []bedrock.Message{
		bedrock.UserMessage(fmt.Sprintf("Question: %s\n\nWorker answer (verbatim):\n%s\n", question, s.WorkerOutput)),
	}

	reply, err := a.model.Invoke(ctx, prompt, msgs, nil)
	if err != nil {
		return s, err
	}
	s.Messages = append(s.Messages, reply)
	s.EvaluationResult = reply.Content
	return s, nil
}

func routeAfterWorker(s State) string {
	if len(s.Messages) > 0 && len(s.Messages[len(s.Messages)-1].ToolCalls) > 0 {
		return "tools"
	}
	if s.WorkerOutput != "" && s.EvaluationResult == "" {
		return "evaluator"
	}
	return graph.End
}

// Result is the outcome of one question, shaped for the invocation
// response body.
type Result struct {
	FinalAnswer      string `json:"result"`
	WorkerOutput     string `json:"worker_output"`
	EvaluationResult string `json:"evaluation_result"`
}

// Answer runs the graph to completion.
func (a *Agent) Answer(ctx context.Context, question string) (*Result, error) {
	final, err := a.compiled.Invoke(ctx, initialState(question), graph.Config{})
	if err != nil {
		return nil, err
	}

	res := &Result{
		WorkerOutput:     final.WorkerOutput,
		EvaluationResult: final.EvaluationResult,
	}
	if len(final.Messages) > 0 {
		res.FinalAnswer = final.Messages[len(final.Messages)-1].Content
	}
	if res.FinalAnswer == "" {
		res.FinalAnswer = final.WorkerOutput
	}
	return res, nil
}

// StreamMode selects the event shape emitted by Stream.
const (
	StreamModeUpdates = "updates"
	StreamModeValues  = "values"
)

// Stream runs the graph and emits one event per executed node.
//
// updates mode: {"node": <name>, ...changed fields...}
// values mode:  {"node": "__values__", "values": <full state>}
func (a *Agent) Stream(ctx context.Context, question, mode string) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)

		initial := initialState(question)
		// Updates events only carry messages added by nodes, not the
		// seed question the caller already has.
		seen := len(initial.Messages)
		for step := range a.compiled.Stream(ctx, initial, graph.Config{}) {
			if step.Err != nil {
				out <- map[string]string{"type": "stream_error", "error": step.Err.Error()}
				return
			}

			if mode == StreamModeValues {
				out <- map[string]any{"node": "__values__", "values": step.State}
				continue
			}

			event := map[string]any{"node": step.Node}
			if newMsgs := step.State.Messages[seen:]; len(newMsgs) > 0 {
				event["messages"] = newMsgs
			}
			seen = len(step.State.Messages)
			if step.State.WorkerOutput != "" {
				event["worker_output"] = step.State.WorkerOutput
			}
			if step.State.EvaluationResult != "" {
				event["evaluation_result"] = step.State.EvaluationResult
			}
			out <- event
		}
	}()
	return out
}

func initialState(question string) State {
	return State{Messages: []bedrock.Message{bedrock.UserMessage(question)}}
}
