// Package store persists registry entities. Stores are interface-driven to
// keep the state machine testable and to allow swapping in-memory and
// Postgres persistence without rewiring flow code. Implementations return
// sentinel errors; services translate them into the flow taxonomy.
package store

import (
	"context"
	"time"

	"github.com/kedh/regcore/internal/registry/model"
)

// ResourceStore persists registry resources keyed by repo ID. Update is a
// compare-and-set on the previous UpdateTime so concurrent mutators lose with
// sentinel.ErrConflict and retry the whole command.
type ResourceStore interface {
	Get(ctx context.Context, repoID string) (*model.Resource, error)
	Create(ctx context.Context, res *model.Resource) error
	Update(ctx context.Context, res *model.Resource, prevUpdateTime time.Time) error
}

// PollMessageStore persists one-time poll messages. Speculative messages are
// deleted by ID when an explicit action retracts them.
type PollMessageStore interface {
	Put(ctx context.Context, msg *model.PollMessage) error
	Delete(ctx context.Context, id string) error
	// ListByClient returns messages addressed to the client with an event
	// time at or before the instant, oldest first.
	ListByClient(ctx context.Context, clientID string, upTo time.Time) ([]*model.PollMessage, error)
}

// BillingEventStore persists billing events. Deletion exists only to retract
// a speculative auto-approval charge; committed events are never removed.
type BillingEventStore interface {
	Put(ctx context.Context, ev *model.BillingEvent) error
	Delete(ctx context.Context, id string) error
	ListByResource(ctx context.Context, repoID string) ([]*model.BillingEvent, error)
}

// HistoryStore is append-only.
type HistoryStore interface {
	Append(ctx context.Context, entry *model.HistoryEntry) error
	ListByResource(ctx context.Context, repoID string) ([]*model.HistoryEntry, error)
}

// Stores bundles the registry stores that participate in one atomic scope.
type Stores struct {
	Resources ResourceStore
	Polls     PollMessageStore
	Billing   BillingEventStore
	History   HistoryStore
}

// TxRunner executes fn inside one atomic commit scope. The Postgres runner
// wraps a database transaction carried in ctx; the memory runner takes a
// coarse lock. Either way, everything fn writes becomes visible atomically
// or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
