// Package index maintains the reverse index from a name to every resource
// ever created under it. The index is append-only and convergent: concurrent
// writers may race, but each merge re-reads and unions, so a missed write is
// repaired by the next one. Entries are never removed, even for deleted
// resources, because the index answers "what has ever existed under this
// name"; callers filter by activity window through projection.
package index

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/projection"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// Entry is one index row: a name and the monotonically non-decreasing set of
// resource repo IDs referencing it.
type Entry struct {
	Name    string
	RepoIDs []string
}

// Has reports whether the entry references the repo ID.
func (e *Entry) Has(repoID string) bool {
	for _, id := range e.RepoIDs {
		if id == repoID {
			return true
		}
	}
	return false
}

// EntryStore persists index entries. Put is a whole-entry write; the merger's
// read-union-write cycle makes last-writer-wins safe because every writer
// writes a superset of what it read.
type EntryStore interface {
	Get(ctx context.Context, name string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
}

// Merger folds new references into index entries.
type Merger struct {
	entries   EntryStore
	lookup    EntryStore
	resources store.ResourceStore
}

func NewMerger(entries EntryStore, resources store.ResourceStore) *Merger {
	return &Merger{entries: entries, lookup: entries, resources: resources}
}

// WithLookup routes read-only lookups through store, typically a cached layer
// over the authoritative entries. The merge path never reads through it: a
// union computed from a stale cached entry would write the regressed set back
// to the authoritative store, silently dropping references.
func (m *Merger) WithLookup(store EntryStore) *Merger {
	m.lookup = store
	return m
}

// MergeReference unions repoID into the entry for name. Merging is
// commutative and idempotent; merging the same reference twice is a no-op.
// The write is not atomic with the resource commit that triggered it — the
// two live in different atomic scopes — so callers tolerate the window where
// the resource exists but the index does not yet reference it.
func (m *Merger) MergeReference(ctx context.Context, name, repoID string) error {
	entry, err := m.entries.Get(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		entry = &Entry{Name: name}
	} else if err != nil {
		return err
	}
	if entry.Has(repoID) {
		return nil
	}
	entry.RepoIDs = append(entry.RepoIDs, repoID)
	sort.Strings(entry.RepoIDs)
	return m.entries.Put(ctx, entry)
}

// LoadActive returns every resource under the name that is active as of now,
// each advanced by projection. Deleted resources stay referenced but are
// filtered out here.
func (m *Merger) LoadActive(ctx context.Context, name string, now time.Time) ([]*model.Resource, error) {
	entry, err := m.lookup.Get(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*model.Resource
	for _, repoID := range entry.RepoIDs {
		res, err := m.resources.Get(ctx, repoID)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Index references are weak; a missing row is skipped rather
			// than treated as corruption.
			continue
		}
		if err != nil {
			return nil, err
		}
		if !projection.IsActive(res, now) {
			continue
		}
		out = append(out, projection.Project(res, now))
	}
	return out, nil
}
