// Package export streams committed manifests to Kafka for backup and
// downstream consumers. Only manifests at or below the checkpoint root's
// per-bucket watermarks are published, so consumers always see a globally
// consistent prefix of the commit log.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

const batchSize = 500

// producer is the part of *kgo.Client the publisher uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher reads manifests up to the checkpointed watermark and produces
// them to a Kafka topic. Delivery is at-least-once: the in-memory cursors
// reset on restart and consumers deduplicate by manifest ID.
type Publisher struct {
	log    *commitlog.Log
	client producer
	topic  string
	logger *slog.Logger

	cursors map[int]time.Time
}

func NewPublisher(log *commitlog.Log, client producer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		log:     log,
		client:  client,
		topic:   topic,
		logger:  logger.With("component", "commitlog.export"),
		cursors: make(map[int]time.Time),
	}
}

// Run exports on the interval until the context ends.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := p.ExportOnce(ctx)
			if err != nil {
				p.logger.Error("export pass failed", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Info("export pass complete", "manifests", n)
			}
		}
	}
}

// manifestRecord is the JSON payload produced per manifest.
type manifestRecord struct {
	ID         string    `json:"id"`
	BucketID   int       `json:"bucketId"`
	CommitTime time.Time `json:"commitTime"`
	Mutated    []string  `json:"mutated"`
	Deleted    []string  `json:"deleted"`
}

// ExportOnce publishes every unexported manifest within the current
// checkpoint root's watermarks and returns how many it produced.
func (p *Publisher) ExportOnce(ctx context.Context) (int, error) {
	store := p.log.Store()
	root, err := store.GetCheckpointRoot(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint root: %w", err)
	}

	total := 0
	for bucket := 1; bucket <= p.log.Buckets(); bucket++ {
		upTo, ok := root.BucketTimes[bucket]
		if !ok {
			continue
		}
		for {
			manifests, err := store.ListManifests(ctx, bucket, p.cursors[bucket], upTo, batchSize)
			if err != nil {
				return total, fmt.Errorf("list manifests for bucket %d: %w", bucket, err)
			}
			if len(manifests) == 0 {
				break
			}
			full := len(manifests) == batchSize
			if full {
				// The cursor is an exclusive lower bound on commit time, so a
				// full batch must not end inside a run of manifests sharing
				// one commit time: advancing past the run would skip its
				// unlisted remainder. Hold the trailing run back for the next
				// pass, or drain it unbounded when it fills the whole batch.
				last := manifests[len(manifests)-1].CommitTime
				cut := len(manifests)
				for cut > 0 && manifests[cut-1].CommitTime.Equal(last) {
					cut--
				}
				if cut > 0 {
					manifests = manifests[:cut]
				} else if manifests, err = store.ListManifests(ctx, bucket, p.cursors[bucket], last, 0); err != nil {
					return total, fmt.Errorf("list manifests for bucket %d: %w", bucket, err)
				}
			}
			if err := p.produce(ctx, manifests); err != nil {
				return total, err
			}
			total += len(manifests)
			p.cursors[bucket] = manifests[len(manifests)-1].CommitTime
			if !full {
				break
			}
		}
	}
	return total, nil
}

func (p *Publisher) produce(ctx context.Context, manifests []*commitlog.Manifest) error {
	records := make([]*kgo.Record, 0, len(manifests))
	for _, m := range manifests {
		payload, err := json.Marshal(manifestRecord{
			ID:         m.ID,
			BucketID:   m.BucketID,
			CommitTime: m.CommitTime,
			Mutated:    keysToStrings(m.Mutated),
			Deleted:    keysToStrings(m.Deleted),
		})
		if err != nil {
			return fmt.Errorf("encode manifest %s: %w", m.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			// Keyed by bucket so one bucket's manifests stay ordered within
			// a partition.
			Key:   []byte(strconv.Itoa(m.BucketID)),
			Value: payload,
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce manifests: %w", err)
	}
	return nil
}

func keysToStrings(keys []commitlog.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
