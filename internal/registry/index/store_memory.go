package index

import (
	"context"
	"sync"

	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// MemoryStore is the in-memory entry store for tests and the memory-backed
// server mode.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := Entry{Name: entry.Name, RepoIDs: append([]string(nil), entry.RepoIDs...)}
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := Entry{Name: entry.Name, RepoIDs: append([]string(nil), entry.RepoIDs...)}
	s.entries[entry.Name] = &cp
	return nil
}
