package commitlog

import (
	"context"
	"fmt"
	"time"
)

// Checkpointer advances per-bucket durability watermarks and aggregates them
// into the checkpoint root. Run periodically from a task endpoint.
type Checkpointer struct {
	log *Log
}

func NewCheckpointer(log *Log) *Checkpointer {
	return &Checkpointer{log: log}
}

// WriteCheckpoint records, for every bucket, the latest manifest commit time
// at or before now, then writes a root aggregating them. Readers wanting a
// globally consistent instant use the root: every manifest at or before its
// per-bucket times is durable across all buckets.
func (c *Checkpointer) WriteCheckpoint(ctx context.Context, now time.Time) (*CheckpointRoot, error) {
	store := c.log.Store()
	root := &CheckpointRoot{
		CheckpointTime: now,
		BucketTimes:    make(map[int]time.Time, c.log.Buckets()),
	}
	for bucket := 1; bucket <= c.log.Buckets(); bucket++ {
		latest, err := store.LatestManifestTime(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("latest manifest time for bucket %d: %w", bucket, err)
		}
		if latest.After(now) {
			// A commit raced in after the task's reference instant; the next
			// checkpoint picks it up.
			latest = now
		}
		cp := &Checkpoint{BucketID: bucket, LastManifestTime: latest}
		if err := store.PutCheckpoint(ctx, cp); err != nil {
			return nil, fmt.Errorf("put checkpoint for bucket %d: %w", bucket, err)
		}
		root.BucketTimes[bucket] = latest
	}
	if err := store.PutCheckpointRoot(ctx, root); err != nil {
		return nil, fmt.Errorf("put checkpoint root: %w", err)
	}
	return root, nil
}
