package label

import (
	"context"
	"sync"

	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// MemoryStore holds lists and zones in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string]*List
	zones map[string]*Zone
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string]*List), zones: make(map[string]*Zone)}
}

func (s *MemoryStore) GetList(ctx context.Context, name string) (*List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.lists[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneList(list), nil
}

func (s *MemoryStore) PutList(ctx context.Context, list *List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list.Name] = cloneList(list)
	return nil
}

func (s *MemoryStore) DeleteList(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[name]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.lists, name)
	return nil
}

func (s *MemoryStore) ListZones(ctx context.Context) ([]*Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Zone, 0, len(s.zones))
	for _, zone := range s.zones {
		cp := *zone
		cp.ReservedLists = append([]string(nil), zone.ReservedLists...)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) PutZone(ctx context.Context, zone *Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *zone
	cp.ReservedLists = append([]string(nil), zone.ReservedLists...)
	s.zones[zone.Name] = &cp
	return nil
}

func cloneList(list *List) *List {
	cp := *list
	cp.Entries = make(map[string]Entry, len(list.Entries))
	for k, v := range list.Entries {
		cp.Entries[k] = v
	}
	return &cp
}
