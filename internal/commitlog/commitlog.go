// Package commitlog records every atomic multi-record mutation as a bucketed,
// timestamped manifest. Buckets are stable hash targets that spread manifest
// writes; per-bucket checkpoints and an aggregated checkpoint root bound
// replay cost and give backup export a consistent global watermark.
package commitlog

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// Key identifies one entity touched by a commit, e.g. "resource/2-ROID" or
// "poll/1835cc28-...". Enough to replay or verify the commit against the
// entity tables.
type Key string

// EntityKey builds a manifest key from an entity kind and its ID.
func EntityKey(kind, id string) Key {
	return Key(kind + "/" + id)
}

// Manifest is the record of one atomic commit: which bucket it hashed to,
// when it committed, and the full set of entity keys it mutated or deleted.
type Manifest struct {
	ID         string
	BucketID   int
	CommitTime time.Time
	Mutated    []Key
	Deleted    []Key
}

// Checkpoint is a bucket's durability watermark: every manifest in the bucket
// with a commit time at or before LastManifestTime is known durable.
type Checkpoint struct {
	BucketID         int
	LastManifestTime time.Time
}

// CheckpointRoot aggregates the per-bucket checkpoints taken at one instant
// into a single global watermark.
type CheckpointRoot struct {
	CheckpointTime time.Time
	BucketTimes    map[int]time.Time
}

// Store persists commit log entities. Manifest appends made inside a TxRunner
// scope commit together with the entity mutations they describe.
type Store interface {
	AppendManifest(ctx context.Context, m *Manifest) error
	// ListManifests returns manifests in the bucket with commit times in
	// (after, upTo], oldest first, at most limit (0 = no limit).
	ListManifests(ctx context.Context, bucketID int, after, upTo time.Time, limit int) ([]*Manifest, error)
	LatestManifestTime(ctx context.Context, bucketID int) (time.Time, error)

	PutCheckpoint(ctx context.Context, c *Checkpoint) error
	GetCheckpoint(ctx context.Context, bucketID int) (*Checkpoint, error)
	PutCheckpointRoot(ctx context.Context, root *CheckpointRoot) error
	GetCheckpointRoot(ctx context.Context) (*CheckpointRoot, error)

	// DeleteBucketContents and DeleteCheckpointRoot exist solely for the
	// environment-gated kill-all job. They report how many records died.
	DeleteBucketContents(ctx context.Context, bucketID int) (int64, error)
	DeleteCheckpointRoot(ctx context.Context) (int64, error)
}

// Log assigns commits to buckets and writes manifests.
type Log struct {
	store   Store
	buckets int
}

// NewLog creates a commit log over a fixed bucket count. The count is part of
// the deployment contract; changing it remaps scope keys.
func NewLog(store Store, buckets int) (*Log, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("bucket count must be positive, got %d", buckets)
	}
	return &Log{store: store, buckets: buckets}, nil
}

// Buckets returns the configured bucket count.
func (l *Log) Buckets() int { return l.buckets }

// BucketFor maps a commit-scoped key to its bucket. Stable FNV hash so the
// same scope always lands in the same bucket.
func (l *Log) BucketFor(scopeKey string) int {
	h := fnv.New32a()
	h.Write([]byte(scopeKey))
	return int(h.Sum32()%uint32(l.buckets)) + 1
}

// Record writes the manifest for one atomic commit. Call it inside the same
// transaction scope as the entity mutations it describes; the manifest then
// commits or rolls back with them.
func (l *Log) Record(ctx context.Context, scopeKey string, commitTime time.Time, mutated, deleted []Key) (*Manifest, error) {
	m := &Manifest{
		ID:         uuid.NewString(),
		BucketID:   l.BucketFor(scopeKey),
		CommitTime: commitTime,
		Mutated:    mutated,
		Deleted:    deleted,
	}
	if err := l.store.AppendManifest(ctx, m); err != nil {
		return nil, fmt.Errorf("append manifest: %w", err)
	}
	return m, nil
}

// Store exposes the underlying store for the checkpoint and cleanup tasks.
func (l *Log) Store() Store { return l.store }
