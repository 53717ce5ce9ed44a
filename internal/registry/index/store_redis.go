package index

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "idx:name:"

// CachedStore layers a Redis read-through cache over an entry store. Entries
// are hot on lookup paths and change rarely; a short TTL plus invalidation on
// write keeps staleness bounded without a cache-coherence protocol. On the
// lookup path a stale read only delays a reference becoming visible. The
// merger's read-union-write cycle must NOT go through this store: wire it via
// Merger.WithLookup, never as the merge-path entry store, or a stale cached
// entry gets unioned and written back over the authoritative set.
type CachedStore struct {
	inner  EntryStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(inner EntryStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "index.cache"),
	}
}

func (s *CachedStore) Get(ctx context.Context, name string) (*Entry, error) {
	raw, err := s.client.Get(ctx, cacheKeyPrefix+name).Bytes()
	if err == nil {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err == nil {
			return &entry, nil
		}
		// Undecodable cache payload: drop it and fall through to the store.
		s.client.Del(ctx, cacheKeyPrefix+name)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("cache read failed, falling through", "name", name, "error", err)
	}

	entry, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(entry); err == nil {
		if err := s.client.Set(ctx, cacheKeyPrefix+name, raw, s.ttl).Err(); err != nil {
			s.logger.Warn("cache fill failed", "name", name, "error", err)
		}
	}
	return entry, nil
}

func (s *CachedStore) Put(ctx context.Context, entry *Entry) error {
	if err := s.inner.Put(ctx, entry); err != nil {
		return err
	}
	// Invalidate rather than update: the next reader re-fills from the
	// authoritative store, so two racing writers cannot strand a stale set.
	if err := s.client.Del(ctx, cacheKeyPrefix+entry.Name).Err(); err != nil {
		s.logger.Warn("cache invalidation failed", "name", entry.Name, "error", err)
	}
	return nil
}
