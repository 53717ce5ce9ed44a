package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// Memory backs every registry store in process memory. Transactions are
// serialized and snapshot the tables, so a failed RunInTx body rolls back —
// the same all-or-nothing visibility the Postgres runner gets from a real
// transaction, at in-memory scale.
type Memory struct {
	mu   sync.Mutex
	txMu sync.Mutex

	resources map[string]*model.Resource
	polls     map[string]*model.PollMessage
	billing   map[string]*model.BillingEvent
	history   []*model.HistoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		resources: make(map[string]*model.Resource),
		polls:     make(map[string]*model.PollMessage),
		billing:   make(map[string]*model.BillingEvent),
	}
}

// Stores returns the store bundle backed by this instance.
func (m *Memory) Stores() Stores {
	return Stores{
		Resources: &memResources{m},
		Polls:     &memPolls{m},
		Billing:   &memBilling{m},
		History:   &memHistory{m},
	}
}

// RunInTx serializes transaction bodies and restores the snapshot when fn
// fails, so partial bundles are never observable.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.restoreLocked(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memorySnapshot struct {
	resources map[string]*model.Resource
	polls     map[string]*model.PollMessage
	billing   map[string]*model.BillingEvent
	history   []*model.HistoryEntry
}

func (m *Memory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		resources: make(map[string]*model.Resource, len(m.resources)),
		polls:     make(map[string]*model.PollMessage, len(m.polls)),
		billing:   make(map[string]*model.BillingEvent, len(m.billing)),
		history:   append([]*model.HistoryEntry(nil), m.history...),
	}
	for k, v := range m.resources {
		s.resources[k] = v
	}
	for k, v := range m.polls {
		s.polls[k] = v
	}
	for k, v := range m.billing {
		s.billing[k] = v
	}
	return s
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.resources = s.resources
	m.polls = s.polls
	m.billing = s.billing
	m.history = s.history
}

type memResources struct{ m *Memory }

func (s *memResources) Get(ctx context.Context, repoID string) (*model.Resource, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	res, ok := s.m.resources[repoID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return res.Clone(), nil
}

func (s *memResources) Create(ctx context.Context, res *model.Resource) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.resources[res.RepoID]; ok {
		return sentinel.ErrConflict
	}
	s.m.resources[res.RepoID] = res.Clone()
	return nil
}

func (s *memResources) Update(ctx context.Context, res *model.Resource, prevUpdateTime time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	existing, ok := s.m.resources[res.RepoID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !existing.UpdateTime.Equal(prevUpdateTime) {
		return sentinel.ErrConflict
	}
	s.m.resources[res.RepoID] = res.Clone()
	return nil
}

type memPolls struct{ m *Memory }

func (s *memPolls) Put(ctx context.Context, msg *model.PollMessage) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.polls[msg.ID] = clonePoll(msg)
	return nil
}

func (s *memPolls) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.polls[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.m.polls, id)
	return nil
}

func (s *memPolls) ListByClient(ctx context.Context, clientID string, upTo time.Time) ([]*model.PollMessage, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*model.PollMessage
	for _, msg := range s.m.polls {
		if msg.ClientID != clientID || msg.EventTime.After(upTo) {
			continue
		}
		out = append(out, clonePoll(msg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

func clonePoll(msg *model.PollMessage) *model.PollMessage {
	cp := *msg
	if msg.PendingAck != nil {
		ack := *msg.PendingAck
		cp.PendingAck = &ack
	}
	return &cp
}

type memBilling struct{ m *Memory }

func (s *memBilling) Put(ctx context.Context, ev *model.BillingEvent) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *ev
	s.m.billing[ev.ID] = &cp
	return nil
}

func (s *memBilling) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.billing[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.m.billing, id)
	return nil
}

func (s *memBilling) ListByResource(ctx context.Context, repoID string) ([]*model.BillingEvent, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*model.BillingEvent
	for _, ev := range s.m.billing {
		if ev.ResourceRepoID == repoID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

type memHistory struct{ m *Memory }

func (s *memHistory) Append(ctx context.Context, entry *model.HistoryEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *entry
	s.m.history = append(s.m.history, &cp)
	return nil
}

func (s *memHistory) ListByResource(ctx context.Context, repoID string) ([]*model.HistoryEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*model.HistoryEntry
	for _, e := range s.m.history {
		if e.ResourceRepoID == repoID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
