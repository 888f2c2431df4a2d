package checkpoint

import (
	"context"
	"sync"
)

// MemorySaver keeps checkpoints in process memory. It backs local runs and
// tests; nothing survives a restart.
type MemorySaver struct {
	mu          sync.Mutex
	checkpoints map[string][]Checkpoint
	writes      map[string][]PendingWrite
}

var _ Saver = (*MemorySaver)(nil)

func NewMemorySaver() *MemorySaver {
	return &MemorySaver{
		checkpoints: map[string][]Checkpoint{},
		writes:      map[string][]PendingWrite{},
	}
}

func threadKey(threadID, actorID string) string {
	return threadID + "\x00" + actorID
}

func (s *MemorySaver) Get(_ context.Context, cfg Config) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps := s.checkpoints[threadKey(cfg.ThreadID, cfg.ActorID)]
	if len(cps) == 0 {
		return nil, nil
	}
	latest := cps[len(cps)-1]
	return &latest, nil
}

func (s *MemorySaver) List(_ context.Context, cfg Config, opts ListOptions) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps := s.checkpoints[threadKey(cfg.ThreadID, cfg.ActorID)]
	out := make([]Checkpoint, 0, len(cps))
	for i := len(cps) - 1; i >= 0; i-- {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, cps[i])
	}
	return out, nil
}

func (s *MemorySaver) Put(_ context.Context, cfg Config, ckpt Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKey(cfg.ThreadID, cfg.ActorID)
	s.checkpoints[key] = append(s.checkpoints[key], ckpt)
	return nil
}

func (s *MemorySaver) PutWrites(_ context.Context, cfg Config, taskID string, writes []PendingWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKey(cfg.ThreadID, cfg.ActorID) + "\x00" + taskID
	s.writes[key] = append(s.writes[key], writes...)
	return nil
}

func (s *MemorySaver) DeleteThread(_ context.Context, threadID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, threadKey(threadID, actorID))
	prefix := threadKey(threadID, actorID) + "\x00"
	for key := range s.writes {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.writes, key)
		}
	}
	return nil
}
