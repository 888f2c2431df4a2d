// Package checkpoint provides pluggable persistence for graph thread state.
package checkpoint

import (
	"context"
	"encoding/json"
	"time"
)

// Config scopes checkpoint operations to a conversation thread and actor.
type Config struct {
	ThreadID string
	ActorID  string
}

// Checkpoint is one persisted snapshot of graph state.
type Checkpoint struct {
	ID        string          `json:"id"`
	Step      int             `json:"step"`
	CreatedAt time.Time       `json:"created_at"`
	State     json.RawMessage `json:"state"`
}

// PendingWrite is an intermediate node result recorded between checkpoints.
type PendingWrite struct {
	Channel string          `json:"channel"`
	Value   json.RawMessage `json:"value"`
}

// ListOptions controls List pagination.
type ListOptions struct {
	// Limit bounds the number of checkpoints returned. Zero means no limit.
	Limit int
}

// Saver is a persistence backend for graph conversation state.
type Saver interface {
	// Get returns the latest checkpoint for the thread, or nil when the
	// thread has no history.
	Get(ctx context.Context, cfg Config) (*Checkpoint, error)

	// List returns checkpoints for the thread, newest first.
	List(ctx context.Context, cfg Config, opts ListOptions) ([]Checkpoint, error)

	// Put persists a checkpoint.
	Put(ctx context.Context, cfg Config, ckpt Checkpoint) error

	// PutWrites records intermediate writes produced by a task.
	PutWrites(ctx context.Context, cfg Config, taskID string, writes []PendingWrite) error

	// DeleteThread removes all checkpoints and writes for a thread.
	DeleteThread(ctx context.Context, threadID, actorID string) error
}
