//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/platform/sentinel"
	"github.com/kedh/regcore/pkg/platform/tx"
	"github.com/kedh/regcore/pkg/testutil/containers"
)

var start = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	stores   store.Stores
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.stores = store.NewPostgres(s.postgres.DB).Stores()
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"resources", "poll_messages", "billing_events", "history_entries")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) resource() *model.Resource {
	return &model.Resource{
		RepoID:         "2-ROID",
		Kind:           model.KindDomain,
		Name:           "example.test",
		CurrentSponsor: "TheRegistrar",
		CreatedBy:      "TheRegistrar",
		CreationTime:   start,
		UpdateTime:     start,
		DeletionTime:   model.EndOfTime,
		Statuses:       model.NewStatusSet(model.StatusOK),
		AuthInfo:       "password123",
		ExpirationTime: start.AddDate(1, 0, 0),
	}
}

func (s *PostgresStoreSuite) TestResourceRoundTrip() {
	ctx := context.Background()
	res := s.resource()
	res.Transfer = &model.TransferRecord{
		Status:               model.TransferPending,
		GainingID:            "NewRegistrar",
		LosingID:             "TheRegistrar",
		RequestTime:          start,
		RequestTrid:          model.Trid{ClientTransactionID: "ABC-12345"},
		ExpirationTime:       start.Add(5 * 24 * time.Hour),
		ServerApprovePollIDs: []string{"p1", "p2"},
		ApprovedExpiration:   start.AddDate(2, 0, 0),
	}

	s.Require().NoError(s.stores.Resources.Create(ctx, res))

	got, err := s.stores.Resources.Get(ctx, "2-ROID")
	s.Require().NoError(err)
	s.Equal(res.CurrentSponsor, got.CurrentSponsor)
	s.True(got.Statuses.Has(model.StatusOK))
	s.Require().NotNil(got.Transfer)
	s.Equal(res.Transfer.ServerApprovePollIDs, got.Transfer.ServerApprovePollIDs)
	s.True(res.Transfer.ExpirationTime.Equal(got.Transfer.ExpirationTime))
	s.True(model.EndOfTime.Equal(got.DeletionTime))
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.stores.Resources.Create(ctx, s.resource()))
	s.ErrorIs(s.stores.Resources.Create(ctx, s.resource()), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.stores.Resources.Get(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateCompareAndSet() {
	ctx := context.Background()
	res := s.resource()
	s.Require().NoError(s.stores.Resources.Create(ctx, res))

	updated := res.Clone()
	updated.CurrentSponsor = "NewRegistrar"
	updated.UpdateTime = start.Add(time.Hour)
	s.Require().NoError(s.stores.Resources.Update(ctx, updated, start))

	// A writer that read the old version loses.
	stale := res.Clone()
	stale.UpdateTime = start.Add(2 * time.Hour)
	s.ErrorIs(s.stores.Resources.Update(ctx, stale, start), sentinel.ErrConflict)

	got, err := s.stores.Resources.Get(ctx, "2-ROID")
	s.Require().NoError(err)
	s.Equal("NewRegistrar", got.CurrentSponsor)
}

func (s *PostgresStoreSuite) TestUpdateMissing() {
	err := s.stores.Resources.Update(context.Background(), s.resource(), start)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPollMessages() {
	ctx := context.Background()
	deadline := start.Add(5 * 24 * time.Hour)

	msg := &model.PollMessage{
		ID:              "p1",
		ClientID:        "NewRegistrar",
		ResourceRepoID:  "2-ROID",
		EventTime:       deadline,
		Message:         "Transfer approved automatically.",
		TransferOutcome: model.TransferServerApproved,
		PendingAck: &model.PendingAck{
			Trid:    model.Trid{ClientTransactionID: "ABC-12345"},
			Success: true,
		},
	}
	s.Require().NoError(s.stores.Polls.Put(ctx, msg))

	// Messages dated in the future are invisible until their event time.
	early, err := s.stores.Polls.ListByClient(ctx, "NewRegistrar", deadline.Add(-time.Second))
	s.Require().NoError(err)
	s.Empty(early)

	due, err := s.stores.Polls.ListByClient(ctx, "NewRegistrar", deadline)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Require().NotNil(due[0].PendingAck)
	s.Equal("ABC-12345", due[0].PendingAck.Trid.ClientTransactionID)
	s.True(due[0].PendingAck.Success)

	s.Require().NoError(s.stores.Polls.Delete(ctx, "p1"))
	s.ErrorIs(s.stores.Polls.Delete(ctx, "p1"), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestBillingAndHistory() {
	ctx := context.Background()

	ev := &model.BillingEvent{
		ID:             "b1",
		ResourceRepoID: "2-ROID",
		ClientID:       "NewRegistrar",
		Reason:         model.BillingReasonTransfer,
		CostCents:      1100,
		EventTime:      start,
	}
	s.Require().NoError(s.stores.Billing.Put(ctx, ev))
	events, err := s.stores.Billing.ListByResource(ctx, "2-ROID")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(int64(1100), events[0].CostCents)

	entry := &model.HistoryEntry{
		ID:             "h1",
		ResourceRepoID: "2-ROID",
		Type:           model.HistoryTransferRequest,
		ClientID:       "NewRegistrar",
		Time:           start,
	}
	s.Require().NoError(s.stores.History.Append(ctx, entry))
	entries, err := s.stores.History.ListByResource(ctx, "2-ROID")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(model.HistoryTransferRequest, entries[0].Type)
}

func (s *PostgresStoreSuite) TestWritesInsideRolledBackTxVanish() {
	ctx := context.Background()

	dbTx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := tx.WithTx(ctx, dbTx)

	s.Require().NoError(s.stores.Resources.Create(txCtx, s.resource()))
	s.Require().NoError(dbTx.Rollback())

	_, err = s.stores.Resources.Get(ctx, "2-ROID")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
