// Package lifecycle creates and deletes registry resources. It exists so the
// name index and the commit log have real writers outside the transfer state
// machine: every create folds a reference into the index, every commit leaves
// a manifest.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/platform/clock"
	"github.com/kedh/regcore/internal/registry/index"
	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/errs"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// ErrAlreadyExists is returned when the repo ID is already taken.
var ErrAlreadyExists = errs.New(errs.CodeStateMismatch, "resource already exists")

type Service struct {
	stores store.Stores
	tx     store.TxRunner
	log    *commitlog.Log
	merger *index.Merger
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(stores store.Stores, tx store.TxRunner, log *commitlog.Log, merger *index.Merger, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		stores: stores,
		tx:     tx,
		log:    log,
		merger: merger,
		clock:  clk,
		logger: logger.With("component", "lifecycle"),
	}
}

// CreateArgs carries a resource creation command.
type CreateArgs struct {
	RepoID  string
	Kind    model.Kind
	Name    string
	Sponsor string
	// AuthInfo, when set, becomes the transfer credential.
	AuthInfo string
	// RegistrationYears sets the initial expiration for kinds with a
	// registration period; ignored for the others.
	RegistrationYears int
	// SignedMarks are base64 payloads attached to applications.
	SignedMarks []string
}

// Create writes the resource, its CREATE history entry, and the commit
// manifest in one atomic scope, then merges the name reference into the
// index. The index write is deliberately outside the scope: a crash between
// the two leaves a resource the next merge repairs, never a dangling index
// reference.
func (s *Service) Create(ctx context.Context, args CreateArgs) (*model.Resource, error) {
	if args.RepoID == "" || args.Name == "" || args.Sponsor == "" {
		return nil, errs.New(errs.CodeMissingParameter, "repo id, name and sponsor are required")
	}
	now := s.clock.Now()
	res := &model.Resource{
		RepoID:             args.RepoID,
		Kind:               args.Kind,
		Name:               args.Name,
		CurrentSponsor:     args.Sponsor,
		CreatedBy:          args.Sponsor,
		CreationTime:       now,
		UpdateTime:         now,
		DeletionTime:       model.EndOfTime,
		Statuses:           model.NewStatusSet(model.StatusOK),
		AuthInfo:           args.AuthInfo,
		EncodedSignedMarks: args.SignedMarks,
	}
	if args.RegistrationYears > 0 && (args.Kind == model.KindDomain || args.Kind == model.KindApplication) {
		res.ExpirationTime = now.AddDate(args.RegistrationYears, 0, 0)
	}
	history := &model.HistoryEntry{
		ID:             uuid.NewString(),
		ResourceRepoID: res.RepoID,
		Type:           model.HistoryCreate,
		ClientID:       args.Sponsor,
		Time:           now,
	}
	if err := s.commit(ctx, res, history, nil); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	if err := s.merger.MergeReference(ctx, res.Name, res.RepoID); err != nil {
		s.logger.Warn("index merge failed, will converge on next merge",
			"name", res.Name, "repoID", res.RepoID, "error", err)
	}
	s.logger.Info("resource created", "repoID", res.RepoID, "kind", res.Kind, "name", res.Name)
	return res, nil
}

// Delete tombstones the resource at the current instant. The row stays; reads
// after the deletion instant report not-found through projection, and the
// index keeps its reference forever.
func (s *Service) Delete(ctx context.Context, repoID, actor string) error {
	if repoID == "" || actor == "" {
		return errs.New(errs.CodeMissingParameter, "repo id and actor are required")
	}
	now := s.clock.Now()
	res, err := s.stores.Resources.Get(ctx, repoID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return errs.New(errs.CodeNotFound, "resource does not exist")
	}
	if err != nil {
		return err
	}
	if !res.IsActive(now) {
		return errs.New(errs.CodeNotFound, "resource does not exist")
	}
	if res.CurrentSponsor != actor {
		return errs.New(errs.CodeUnauthorized, "resource is sponsored by another party")
	}
	prev := res.UpdateTime
	res = res.Clone()
	res.DeletionTime = now
	res.UpdateTime = now
	history := &model.HistoryEntry{
		ID:             uuid.NewString(),
		ResourceRepoID: res.RepoID,
		Type:           model.HistoryDelete,
		ClientID:       actor,
		Time:           now,
	}
	prevTime := prev
	if err := s.commit(ctx, res, history, &prevTime); err != nil {
		return err
	}
	s.logger.Info("resource deleted", "repoID", repoID, "by", actor)
	return nil
}

func (s *Service) commit(ctx context.Context, res *model.Resource, history *model.HistoryEntry, prevUpdateTime *time.Time) error {
	scope := string(commitlog.EntityKey("resource", res.RepoID))
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if prevUpdateTime == nil {
			if err := s.stores.Resources.Create(ctx, res); err != nil {
				return err
			}
		} else {
			if err := s.stores.Resources.Update(ctx, res, *prevUpdateTime); err != nil {
				return err
			}
		}
		if err := s.stores.History.Append(ctx, history); err != nil {
			return err
		}
		mutated := []commitlog.Key{
			commitlog.EntityKey("resource", res.RepoID),
			commitlog.EntityKey("history", history.ID),
		}
		_, err := s.log.Record(ctx, scope, res.UpdateTime, mutated, nil)
		return err
	})
}
