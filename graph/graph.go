// Package graph provides a small directed-graph orchestrator for LLM
// workflows: named nodes transform a shared state, edges (plain or
// conditional) pick the next node, and an optional checkpointer persists
// the state after every step.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plexusone/agentcore-runtime/checkpoint"
)

// End is the terminal routing target.
const End = "__end__"

// NodeFunc transforms the state. It returns the updated state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouteFunc picks the next node name (or End) from the current state.
type RouteFunc[S any] func(state S) string

// Graph is a mutable graph definition. Compile validates it and returns an
// executable form.
type Graph[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]RouteFunc[S]
	entry       string
}

func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:       map[string]NodeFunc[S]{},
		edges:       map[string]string{},
		conditional: map[string]RouteFunc[S]{},
	}
}

// AddNode registers a named node. The first node added becomes the entry
// point unless SetEntry overrides it.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	g.nodes[name] = fn
	if g.entry == "" {
		g.entry = name
	}
	return g
}

// AddEdge adds an unconditional edge. Use End as the target to finish.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from a node based on the state.
func (g *Graph[S]) AddConditionalEdge(from string, route RouteFunc[S]) *Graph[S] {
	g.conditional[from] = route
	return g
}

// SetEntry sets the entry node.
func (g *Graph[S]) SetEntry(name string) *Graph[S] {
	g.entry = name
	return g
}

// Options configure a compiled graph.
type Options[S any] struct {
	// Checkpointer persists state after each step when set.
	Checkpointer checkpoint.Saver

	// Merge combines a restored checkpoint state with the invocation
	// input. Required to resume threads meaningfully; when nil, the
	// restored state wins and the input is dropped.
	Merge func(restored, input S) S

	// MaxSteps bounds node executions per invocation. Zero means the
	// default of 25.
	MaxSteps int
}

const defaultMaxSteps = 25

// Compiled is an executable graph.
type Compiled[S any] struct {
	graph *Graph[S]
	opts  Options[S]
}

// Compile validates the graph and returns an executable form.
func (g *Graph[S]) Compile(opts ...Options[S]) (*Compiled[S], error) {
	var o Options[S]
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.MaxSteps == 0 {
		o.MaxSteps = defaultMaxSteps
	}

	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("entry node %q not found", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("edge from %q to unknown node %q", from, to)
			}
		}
	}
	for from := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("conditional edge from unknown node %q", from)
		}
	}
	return &Compiled[S]{graph: g, opts: o}, nil
}

// Config scopes an invocation to a conversation thread.
type Config struct {
	ThreadID string
	ActorID  string
}

func (c Config) checkpointConfig() checkpoint.Config {
	return checkpoint.Config{ThreadID: c.ThreadID, ActorID: c.ActorID}
}

// Invoke runs the graph to completion and returns the final state. When a
// checkpointer is configured and cfg carries a thread ID, the latest
// checkpoint for the thread is restored into the state before running.
func (c *Compiled[S]) Invoke(ctx context.Context, state S, cfg Config) (S, error) {
	final := state
	for step := range c.run(ctx, state, cfg) {
		if step.Err != nil {
			return final, step.Err
		}
		final = step.State
	}
	return final, nil
}

// Step is one node execution surfaced by Stream.
type Step[S any] struct {
	// Node is the name of the node that just ran.
	Node string
	// State is the state after the node ran.
	State S
	// Err terminates the stream when non-nil.
	Err error
}

// Stream runs the graph and emits one Step per node execution. The channel
// closes when the run finishes or fails; a failure is delivered as the last
// step's Err.
func (c *Compiled[S]) Stream(ctx context.Context, state S, cfg Config) <-chan Step[S] {
	return c.run(ctx, state, cfg)
}

func (c *Compiled[S]) run(ctx context.Context, state S, cfg Config) <-chan Step[S] {
	out := make(chan Step[S])
	go func() {
		defer close(out)

		saver := c.opts.Checkpointer
		useCheckpoints := saver != nil && cfg.ThreadID != ""

		baseStep := 0
		if useCheckpoints {
			restored, base, err := c.restore(ctx, state, cfg)
			if err != nil {
				out <- Step[S]{Err: err}
				return
			}
			state = restored
			baseStep = base
		}

		current := c.graph.entry
		executed := 0
		for current != End {
			if err := ctx.Err(); err != nil {
				out <- Step[S]{Err: err}
				return
			}
			if executed >= c.opts.MaxSteps {
				out <- Step[S]{Err: fmt.Errorf("graph exceeded %d steps without reaching end", c.opts.MaxSteps)}
				return
			}

			fn := c.graph.nodes[current]
			next, err := fn(ctx, state)
			if err != nil {
				out <- Step[S]{Node: current, State: state, Err: fmt.Errorf("node %s: %w", current, err)}
				return
			}
			state = next
			executed++

			if useCheckpoints {
				if err := c.persist(ctx, state, cfg, current, baseStep+executed); err != nil {
					out <- Step[S]{Node: current, State: state, Err: err}
					return
				}
			}

			out <- Step[S]{Node: current, State: state}

			current, err = c.nextNode(current, state)
			if err != nil {
				out <- Step[S]{Err: err}
				return
			}
		}
	}()
	return out
}

func (c *Compiled[S]) nextNode(current string, state S) (string, error) {
	if route, ok := c.graph.conditional[current]; ok {
		target := route(state)
		if target == End {
			return End, nil
		}
		if _, ok := c.graph.nodes[target]; !ok {
			return "", fmt.Errorf("node %s routed to unknown node %q", current, target)
		}
		return target, nil
	}
	if to, ok := c.graph.edges[current]; ok {
		return to, nil
	}
	return End, nil
}

// restore loads the latest checkpoint for the thread and returns the step
// it was taken at, so subsequent checkpoints continue the numbering instead
// of restarting from 1 each invocation.
func (c *Compiled[S]) restore(ctx context.Context, input S, cfg Config) (S, int, error) {
	ckpt, err := c.opts.Checkpointer.Get(ctx, cfg.checkpointConfig())
	if err != nil {
		return input, 0, fmt.Errorf("restoring checkpoint for thread %s: %w", cfg.ThreadID, err)
	}
	if ckpt == nil {
		return input, 0, nil
	}
	var restored S
	if err := json.Unmarshal(ckpt.State, &restored); err != nil {
		return input, 0, fmt.Errorf("decoding checkpoint %s: %w", ckpt.ID, err)
	}
	if c.opts.Merge != nil {
		return c.opts.Merge(restored, input), ckpt.Step, nil
	}
	return restored, ckpt.Step, nil
}

func (c *Compiled[S]) persist(ctx context.Context, state S, cfg Config, node string, step int) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state after node %s: %w", node, err)
	}
	ckpt := checkpoint.Checkpoint{
		ID:        uuid.NewString(),
		Step:      step,
		CreatedAt: time.Now().UTC(),
		State:     data,
	}
	if err := c.opts.Checkpointer.Put(ctx, cfg.checkpointConfig(), ckpt); err != nil {
		return fmt.Errorf("persisting checkpoint after node %s: %w", node, err)
	}
	return nil
}
