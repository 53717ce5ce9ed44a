package commitlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// MemoryStore is the in-memory commit log store used by unit tests and the
// memory-backed server mode.
type MemoryStore struct {
	mu          sync.Mutex
	manifests   []*Manifest
	checkpoints map[int]*Checkpoint
	root        *CheckpointRoot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[int]*Checkpoint)}
}

func (s *MemoryStore) AppendManifest(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	cp.Mutated = append([]Key(nil), m.Mutated...)
	cp.Deleted = append([]Key(nil), m.Deleted...)
	s.manifests = append(s.manifests, &cp)
	return nil
}

func (s *MemoryStore) ListManifests(ctx context.Context, bucketID int, after, upTo time.Time, limit int) ([]*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Manifest
	for _, m := range s.manifests {
		if m.BucketID != bucketID || !m.CommitTime.After(after) || m.CommitTime.After(upTo) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommitTime.Before(out[j].CommitTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) LatestManifestTime(ctx context.Context, bucketID int) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for _, m := range s.manifests {
		if m.BucketID == bucketID && m.CommitTime.After(latest) {
			latest = m.CommitTime
		}
	}
	return latest, nil
}

func (s *MemoryStore) PutCheckpoint(ctx context.Context, c *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.checkpoints[c.BucketID] = &cp
	return nil
}

func (s *MemoryStore) GetCheckpoint(ctx context.Context, bucketID int) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkpoints[bucketID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) PutCheckpointRoot(ctx context.Context, root *CheckpointRoot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := CheckpointRoot{
		CheckpointTime: root.CheckpointTime,
		BucketTimes:    make(map[int]time.Time, len(root.BucketTimes)),
	}
	for k, v := range root.BucketTimes {
		cp.BucketTimes[k] = v
	}
	s.root = &cp
	return nil
}

func (s *MemoryStore) GetCheckpointRoot(ctx context.Context) (*CheckpointRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := CheckpointRoot{
		CheckpointTime: s.root.CheckpointTime,
		BucketTimes:    make(map[int]time.Time, len(s.root.BucketTimes)),
	}
	for k, v := range s.root.BucketTimes {
		cp.BucketTimes[k] = v
	}
	return &cp, nil
}

func (s *MemoryStore) DeleteBucketContents(ctx context.Context, bucketID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*Manifest
	var deleted int64
	for _, m := range s.manifests {
		if m.BucketID == bucketID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.manifests = kept
	if _, ok := s.checkpoints[bucketID]; ok {
		delete(s.checkpoints, bucketID)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) DeleteCheckpointRoot(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return 0, nil
	}
	s.root = nil
	return 1, nil
}
