// Package label manages the premium and reserved label lists and the zones
// that reference them. Deleting a list is refused while any zone still
// references it; the check is answered here, not by the administrative tool.
package label

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kedh/regcore/pkg/errs"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// Kind distinguishes the two list flavors.
type Kind string

const (
	KindPremium  Kind = "premium"
	KindReserved Kind = "reserved"
)

// Entry is one parsed label line.
type Entry struct {
	Label string
	Value string
}

// List is a named label list.
type List struct {
	Name         string
	Kind         Kind
	CreationTime time.Time
	Entries      map[string]Entry
}

// Zone is a delegated zone's list wiring.
type Zone struct {
	Name          string
	PremiumList   string
	ReservedLists []string
}

// References reports whether the zone uses the named list.
func (z *Zone) References(listName string) bool {
	if z.PremiumList == listName {
		return true
	}
	for _, name := range z.ReservedLists {
		if name == listName {
			return true
		}
	}
	return false
}

// Store persists lists and zones.
type Store interface {
	GetList(ctx context.Context, name string) (*List, error)
	PutList(ctx context.Context, list *List) error
	DeleteList(ctx context.Context, name string) error
	ListZones(ctx context.Context) ([]*Zone, error)
	PutZone(ctx context.Context, zone *Zone) error
}

// Service exposes list management.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Parse turns list file lines into entries. Lines may carry '#' comments;
// blank lines are skipped. A duplicate label keeps the greater value, so the
// highest-priority line wins regardless of file order.
func Parse(lines []string) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	for i, line := range lines {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, found := strings.Cut(line, ",")
		if !found {
			return nil, fmt.Errorf("line %d: expected label,value", i+1)
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if existing, ok := entries[label]; ok && existing.Value >= value {
			continue
		}
		entries[label] = Entry{Label: label, Value: value}
	}
	return entries, nil
}

// Save parses and stores a list.
func (s *Service) Save(ctx context.Context, name string, kind Kind, lines []string, now time.Time) (*List, error) {
	if name == "" {
		return nil, errs.New(errs.CodeMissingParameter, "list name is required")
	}
	entries, err := Parse(lines)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStateMismatch, "list did not parse")
	}
	list := &List{Name: name, Kind: kind, CreationTime: now, Entries: entries}
	if err := s.store.PutList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// ReferencingZones returns the names of zones that currently reference the
// list.
func (s *Service) ReferencingZones(ctx context.Context, listName string) ([]string, error) {
	zones, err := s.store.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, zone := range zones {
		if zone.References(listName) {
			out = append(out, zone.Name)
		}
	}
	return out, nil
}

// Delete removes a list, refusing while any zone references it.
func (s *Service) Delete(ctx context.Context, name string) error {
	if _, err := s.store.GetList(ctx, name); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return errs.New(errs.CodeNotFound, fmt.Sprintf("list %q does not exist", name))
		}
		return err
	}
	referencing, err := s.ReferencingZones(ctx, name)
	if err != nil {
		return err
	}
	if len(referencing) > 0 {
		return errs.New(errs.CodeStateMismatch,
			fmt.Sprintf("cannot delete list %q: referenced by zones %s", name, strings.Join(referencing, ", ")))
	}
	return s.store.DeleteList(ctx, name)
}
