// Package transfer implements the ownership-transfer state machine:
// request, approve, reject, cancel, and the automatic approval that
// projection resolves at the deadline. Every applied transition commits its
// side-effect bundle atomically and records a commit log manifest.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/platform/clock"
	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/projection"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/errs"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// maxCommitAttempts bounds the optimistic retry cycle. Each attempt re-reads
// and re-projects the resource, so a retry sees concurrent writers' results.
const maxCommitAttempts = 3

// Service validates and applies transfer transitions.
type Service struct {
	stores  store.Stores
	tx      store.TxRunner
	log     *commitlog.Log
	clock   clock.Clock
	policy  Policy
	metrics *Metrics
	logger  *slog.Logger
}

func NewService(stores store.Stores, tx store.TxRunner, log *commitlog.Log, clk clock.Clock, policy Policy, metrics *Metrics, logger *slog.Logger) *Service {
	return &Service{
		stores:  stores,
		tx:      tx,
		log:     log,
		clock:   clk,
		policy:  policy,
		metrics: metrics,
		logger:  logger.With("component", "transfer"),
	}
}

// RequestArgs carries a transfer request command.
type RequestArgs struct {
	RepoID string
	Actor  string
	// Trid is the protocol transaction identifier pair, echoed in the
	// pending-action acknowledgment of whichever outcome resolves this
	// request.
	Trid     model.Trid
	AuthInfo string
}

// ResolveArgs carries an approve, reject, or cancel command.
type ResolveArgs struct {
	RepoID   string
	Actor    string
	AuthInfo string
	// AsRegistry marks a registry-operator action: role checks are skipped
	// and approval resolves SERVER_APPROVED, cancellation SERVER_CANCELLED.
	AsRegistry bool
}

// Result is the outcome of an applied transition.
type Result struct {
	// Resource is the post-transition resource as committed.
	Resource *model.Resource
	Status   model.TransferStatus
}

// Request installs a PENDING transfer with its speculative automatic-approval
// records.
func (s *Service) Request(ctx context.Context, args RequestArgs) (*Result, error) {
	if err := requireParams(args.RepoID, args.Actor); err != nil {
		return nil, err
	}
	b, err := s.commit(ctx, args.RepoID, func(ctx context.Context) (*bundle, error) {
		now := s.clock.Now()
		res, err := s.loadProjectedActive(ctx, args.RepoID, now)
		if err != nil {
			return nil, err
		}
		if err := verifyCredential(res, args.AuthInfo, true); err != nil {
			return nil, err
		}
		if res.Transfer != nil && res.Transfer.Status == model.TransferPending {
			return nil, ErrTransferAlreadyPending
		}
		if res.CurrentSponsor == args.Actor {
			return nil, ErrAlreadySponsored
		}
		if !s.policy.EligibleForTransfer(res, now) {
			return nil, ErrTransferNotEligible
		}
		return buildRequestBundle(res, args.Actor, args.Trid, now, s.policy), nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.requested()
	s.logger.Info("transfer requested",
		"repoID", args.RepoID, "gaining", args.Actor,
		"losing", b.resource.Transfer.LosingID,
		"deadline", b.resource.Transfer.ExpirationTime)
	return &Result{Resource: b.resource, Status: model.TransferPending}, nil
}

// Approve resolves the pending transfer in the requester's favor. Only the
// losing sponsor (or the registry operator) may approve.
func (s *Service) Approve(ctx context.Context, args ResolveArgs) (*Result, error) {
	outcome := model.TransferClientApproved
	if args.AsRegistry {
		outcome = model.TransferServerApproved
	}
	return s.resolve(ctx, args, outcome)
}

// Reject resolves the pending transfer against the requester. Only the losing
// sponsor may reject; registry operators cancel instead.
func (s *Service) Reject(ctx context.Context, args ResolveArgs) (*Result, error) {
	if args.AsRegistry {
		return nil, ErrRegistryCannotReject
	}
	return s.resolve(ctx, args, model.TransferClientRejected)
}

// Cancel withdraws the pending transfer. Only the requesting party (or the
// registry operator) may cancel.
func (s *Service) Cancel(ctx context.Context, args ResolveArgs) (*Result, error) {
	outcome := model.TransferClientCancelled
	if args.AsRegistry {
		outcome = model.TransferServerCancelled
	}
	return s.resolve(ctx, args, outcome)
}

func (s *Service) resolve(ctx context.Context, args ResolveArgs, outcome model.TransferStatus) (*Result, error) {
	if err := requireParams(args.RepoID, args.Actor); err != nil {
		return nil, err
	}
	b, err := s.commit(ctx, args.RepoID, func(ctx context.Context) (*bundle, error) {
		now := s.clock.Now()
		res, err := s.loadProjectedActive(ctx, args.RepoID, now)
		if err != nil {
			return nil, err
		}
		if err := verifyCredential(res, args.AuthInfo, false); err != nil {
			return nil, err
		}
		// Projection has already applied automatic approval if the deadline
		// passed, so a PENDING record here is genuinely still open.
		if res.Transfer == nil || res.Transfer.Status != model.TransferPending {
			return nil, ErrNotPendingTransfer
		}
		if !args.AsRegistry {
			if err := verifyRole(res.Transfer, args.Actor, outcome); err != nil {
				return nil, err
			}
		}
		return buildResolutionBundle(res, outcome, args.Actor, now, s.policy), nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.resolved(string(outcome))
	s.logger.Info("transfer resolved",
		"repoID", args.RepoID, "actor", args.Actor, "status", outcome)
	return &Result{Resource: b.resource, Status: outcome}, nil
}

// loadProjectedActive reads the stored resource and advances it to now.
// Tombstones and resources deleted as of the effective instant are invisible
// to commands.
func (s *Service) loadProjectedActive(ctx context.Context, repoID string, now time.Time) (*model.Resource, error) {
	stored, err := s.stores.Resources.Get(ctx, repoID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrResourceDoesNotExist
		}
		return nil, err
	}
	if !projection.IsActive(stored, now) {
		return nil, ErrResourceDoesNotExist
	}
	return projection.Project(stored, now), nil
}

// commit runs the read-validate-stage cycle and the bundle's atomic
// application, retrying the whole cycle on store contention. The manifest is
// recorded in the same scope, so the commit log and the entity tables agree.
func (s *Service) commit(ctx context.Context, repoID string, build func(ctx context.Context) (*bundle, error)) (*bundle, error) {
	scope := string(commitlog.EntityKey("resource", repoID))
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		start := s.clock.Now()
		var b *bundle
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			if b, err = build(ctx); err != nil {
				return err
			}
			if err := b.apply(ctx, s.stores); err != nil {
				return err
			}
			mutated, deleted := b.keys()
			_, err = s.log.Record(ctx, scope, b.resource.UpdateTime, mutated, deleted)
			return err
		})
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.retried()
			s.logger.Warn("commit contention, retrying", "repoID", repoID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.metrics.commitSeconds(s.clock.Now().Sub(start).Seconds())
		return b, nil
	}
	return nil, ErrContention
}

func requireParams(repoID, actor string) error {
	if repoID == "" {
		return errs.New(errs.CodeMissingParameter, "resource identifier is required")
	}
	if actor == "" {
		return errs.New(errs.CodeMissingParameter, "acting party is required")
	}
	return nil
}

// verifyCredential checks the supplied credential against the resource's.
// When required is set the resource's credential must be presented; otherwise
// a credential is only validated if supplied.
func verifyCredential(res *model.Resource, authInfo string, required bool) error {
	if res.AuthInfo == "" {
		return nil
	}
	if authInfo == "" {
		if required {
			return ErrMissingAuthInfo
		}
		return nil
	}
	if authInfo != res.AuthInfo {
		return ErrBadCredential
	}
	return nil
}

// verifyRole enforces which party may apply each resolution: the losing
// sponsor answers a request it did not initiate (approve or reject), the
// requesting party may withdraw its own (cancel).
func verifyRole(record *model.TransferRecord, actor string, outcome model.TransferStatus) error {
	switch outcome {
	case model.TransferClientApproved, model.TransferClientRejected:
		if actor != record.LosingID {
			return ErrResourceNotOwned
		}
	case model.TransferClientCancelled:
		if actor != record.GainingID {
			return ErrResourceNotOwned
		}
	}
	return nil
}
