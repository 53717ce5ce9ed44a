package commitlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kedh/regcore/internal/platform/config"
)

// Killer deletes every commit log record: all manifests and checkpoints under
// every bucket, plus the checkpoint root. It exists for resetting sandbox and
// test environments and refuses to run anywhere that could hold production
// data.
type Killer struct {
	log    *Log
	env    config.Environment
	logger *slog.Logger
}

func NewKiller(log *Log, env config.Environment, logger *slog.Logger) *Killer {
	return &Killer{log: log, env: env, logger: logger.With("component", "commitlog.killer")}
}

// KillAll deletes all commit log contents, one shard per bucket plus one for
// the checkpoint root, in parallel. Shards are independent and restartable;
// a failed shard leaves the others' deletions in place and the job can simply
// be rerun. Returns the total number of records deleted.
func (k *Killer) KillAll(ctx context.Context) (int64, error) {
	if !k.env.AllowsKillAll() {
		return 0, fmt.Errorf("kill-all refused in environment %q: only sandbox and unittest may delete commit logs", k.env)
	}

	store := k.log.Store()
	var deleted atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for bucket := 1; bucket <= k.log.Buckets(); bucket++ {
		g.Go(func() error {
			n, err := store.DeleteBucketContents(ctx, bucket)
			if err != nil {
				return fmt.Errorf("delete bucket %d: %w", bucket, err)
			}
			deleted.Add(n)
			k.logger.Info("bucket shard complete", "bucket", bucket, "deleted", n)
			return nil
		})
	}
	g.Go(func() error {
		n, err := store.DeleteCheckpointRoot(ctx)
		if err != nil {
			return fmt.Errorf("delete checkpoint root: %w", err)
		}
		deleted.Add(n)
		k.logger.Info("checkpoint root shard complete", "deleted", n)
		return nil
	})

	if err := g.Wait(); err != nil {
		return deleted.Load(), err
	}
	return deleted.Load(), nil
}
