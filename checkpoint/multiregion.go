package checkpoint

import (
	"context"
	"fmt"

	"github.com/plexusone/agentcore-runtime/logger"
)

// MultiRegionSaver replicates checkpoint writes across two independent
// savers for disaster recovery.
//
// Reads hit the primary region only. Writes go to the primary first, then
// the secondary, and succeed only when both succeed. There is no
// compensation or rollback: a failed secondary write after a successful
// primary write leaves the regions inconsistent until the next successful
// write.
type MultiRegionSaver struct {
	primary         Saver
	secondary       Saver
	primaryRegion   string
	secondaryRegion string
}

var _ Saver = (*MultiRegionSaver)(nil)

// NewMultiRegionSaver wraps a primary and a secondary saver.
func NewMultiRegionSaver(primary, secondary Saver, primaryRegion, secondaryRegion string) *MultiRegionSaver {
	return &MultiRegionSaver{
		primary:         primary,
		secondary:       secondary,
		primaryRegion:   primaryRegion,
		secondaryRegion: secondaryRegion,
	}
}

func (s *MultiRegionSaver) Get(ctx context.Context, cfg Config) (*Checkpoint, error) {
	return s.primary.Get(ctx, cfg)
}

func (s *MultiRegionSaver) List(ctx context.Context, cfg Config, opts ListOptions) ([]Checkpoint, error) {
	return s.primary.List(ctx, cfg, opts)
}

func (s *MultiRegionSaver) Put(ctx context.Context, cfg Config, ckpt Checkpoint) error {
	if err := s.primary.Put(ctx, cfg, ckpt); err != nil {
		return fmt.Errorf("putting checkpoint in %s: %w", s.primaryRegion, err)
	}
	if err := s.secondary.Put(ctx, cfg, ckpt); err != nil {
		logger.Logger.Error().
			Err(err).
			Str("thread_id", cfg.ThreadID).
			Str("region", s.secondaryRegion).
			Msg("secondary checkpoint write failed after primary succeeded")
		return fmt.Errorf("putting checkpoint in %s: %w", s.secondaryRegion, err)
	}
	return nil
}

func (s *MultiRegionSaver) PutWrites(ctx context.Context, cfg Config, taskID string, writes []PendingWrite) error {
	if err := s.primary.PutWrites(ctx, cfg, taskID, writes); err != nil {
		return fmt.Errorf("putting writes in %s: %w", s.primaryRegion, err)
	}
	if err := s.secondary.PutWrites(ctx, cfg, taskID, writes); err != nil {
		return fmt.Errorf("putting writes in %s: %w", s.secondaryRegion, err)
	}
	return nil
}

func (s *MultiRegionSaver) DeleteThread(ctx context.Context, threadID, actorID string) error {
	if err := s.primary.DeleteThread(ctx, threadID, actorID); err != nil {
		return fmt.Errorf("deleting thread in %s: %w", s.primaryRegion, err)
	}
	if err := s.secondary.DeleteThread(ctx, threadID, actorID); err != nil {
		return fmt.Errorf("deleting thread in %s: %w", s.secondaryRegion, err)
	}
	return nil
}
