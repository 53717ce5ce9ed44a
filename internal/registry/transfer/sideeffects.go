package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/store"
)

// bundle is the full write set accompanying one state transition: the
// resource mutation, notifications, retractions, billing, and audit entry.
// It is applied inside a single commit scope; readers never observe part of
// a bundle.
type bundle struct {
	resource       *model.Resource
	prevUpdateTime time.Time

	newPolls        []*model.PollMessage
	deletePollIDs   []string
	newBilling      *model.BillingEvent
	deleteBillingID string
	history         *model.HistoryEntry
}

// apply writes every record in the bundle. Must run inside a TxRunner scope.
func (b *bundle) apply(ctx context.Context, st store.Stores) error {
	if err := st.Resources.Update(ctx, b.resource, b.prevUpdateTime); err != nil {
		return err
	}
	for _, id := range b.deletePollIDs {
		if err := st.Polls.Delete(ctx, id); err != nil {
			return fmt.Errorf("retract speculative poll message %s: %w", id, err)
		}
	}
	if b.deleteBillingID != "" {
		if err := st.Billing.Delete(ctx, b.deleteBillingID); err != nil {
			return fmt.Errorf("retract speculative billing event %s: %w", b.deleteBillingID, err)
		}
	}
	for _, msg := range b.newPolls {
		if err := st.Polls.Put(ctx, msg); err != nil {
			return err
		}
	}
	if b.newBilling != nil {
		if err := st.Billing.Put(ctx, b.newBilling); err != nil {
			return err
		}
	}
	return st.History.Append(ctx, b.history)
}

// keys returns the manifest key sets for the bundle's commit.
func (b *bundle) keys() (mutated, deleted []commitlog.Key) {
	mutated = append(mutated, commitlog.EntityKey("resource", b.resource.RepoID))
	for _, msg := range b.newPolls {
		mutated = append(mutated, commitlog.EntityKey("poll", msg.ID))
	}
	if b.newBilling != nil {
		mutated = append(mutated, commitlog.EntityKey("billing", b.newBilling.ID))
	}
	mutated = append(mutated, commitlog.EntityKey("history", b.history.ID))
	for _, id := range b.deletePollIDs {
		deleted = append(deleted, commitlog.EntityKey("poll", id))
	}
	if b.deleteBillingID != "" {
		deleted = append(deleted, commitlog.EntityKey("billing", b.deleteBillingID))
	}
	return mutated, deleted
}

// buildRequestBundle installs a PENDING transfer on the projected resource:
// the transfer record, the speculative records for the automatic-approval
// outcome, and the request history entry. The speculative poll messages are
// dated at the deadline; they describe a future that an explicit resolution
// must retract.
func buildRequestBundle(res *model.Resource, requester string, trid model.Trid, now time.Time, policy Policy) *bundle {
	prevUpdateTime := res.UpdateTime
	deadline := now.Add(policy.PendingPeriod)

	record := &model.TransferRecord{
		Status:         model.TransferPending,
		GainingID:      requester,
		LosingID:       res.CurrentSponsor,
		RequestTime:    now,
		RequestTrid:    trid,
		ExpirationTime: deadline,
	}

	gainingSpeculative := &model.PollMessage{
		ID:              uuid.NewString(),
		ClientID:        requester,
		ResourceRepoID:  res.RepoID,
		EventTime:       deadline,
		Message:         "Transfer approved automatically.",
		TransferOutcome: model.TransferServerApproved,
		PendingAck:      &model.PendingAck{Trid: trid, Success: true},
	}
	losingSpeculative := &model.PollMessage{
		ID:              uuid.NewString(),
		ClientID:        res.CurrentSponsor,
		ResourceRepoID:  res.RepoID,
		EventTime:       deadline,
		Message:         "Transfer approved automatically.",
		TransferOutcome: model.TransferServerApproved,
	}
	record.ServerApprovePollIDs = []string{gainingSpeculative.ID, losingSpeculative.ID}

	b := &bundle{
		resource:       res,
		prevUpdateTime: prevUpdateTime,
		newPolls:       []*model.PollMessage{gainingSpeculative, losingSpeculative},
		history: &model.HistoryEntry{
			ID:             uuid.NewString(),
			ResourceRepoID: res.RepoID,
			Type:           model.HistoryTransferRequest,
			ClientID:       requester,
			Time:           now,
		},
	}

	if policy.Billable(res.Kind) {
		b.newBilling = &model.BillingEvent{
			ID:             uuid.NewString(),
			ResourceRepoID: res.RepoID,
			ClientID:       requester,
			Reason:         model.BillingReasonTransfer,
			CostCents:      policy.CostCents,
			EventTime:      deadline,
		}
		record.ServerApproveBillingID = b.newBilling.ID
	}
	if !res.ExpirationTime.IsZero() {
		record.ApprovedExpiration = res.ExpirationTime.AddDate(1, 0, 0)
	}

	res.Transfer = record
	res.Statuses = res.Statuses.With(model.StatusPendingTransfer)
	res.UpdateTime = now
	return b
}

// buildResolutionBundle resolves the pending transfer on the projected
// resource to a terminal status. The speculative future records installed at
// request time have not fired (the transfer still projected PENDING), so the
// real outcome retracts them and installs an immediate poll message to the
// requesting party carrying the pending-action acknowledgment.
func buildResolutionBundle(res *model.Resource, outcome model.TransferStatus, actor string, now time.Time, policy Policy) *bundle {
	prevUpdateTime := res.UpdateTime
	record := res.Transfer
	approved := outcome == model.TransferClientApproved || outcome == model.TransferServerApproved

	b := &bundle{
		resource:        res,
		prevUpdateTime:  prevUpdateTime,
		deletePollIDs:   append([]string(nil), record.ServerApprovePollIDs...),
		deleteBillingID: record.ServerApproveBillingID,
		history: &model.HistoryEntry{
			ID:             uuid.NewString(),
			ResourceRepoID: res.RepoID,
			Type:           historyTypeFor(outcome),
			ClientID:       actor,
			Time:           now,
		},
	}

	b.newPolls = []*model.PollMessage{{
		ID:              uuid.NewString(),
		ClientID:        record.GainingID,
		ResourceRepoID:  res.RepoID,
		EventTime:       now,
		Message:         messageFor(outcome),
		TransferOutcome: outcome,
		PendingAck:      &model.PendingAck{Trid: record.RequestTrid, Success: approved},
	}}

	if approved {
		res.CurrentSponsor = record.GainingID
		res.LastTransferTime = now
		if !record.ApprovedExpiration.IsZero() {
			res.ExpirationTime = record.ApprovedExpiration
		}
		if policy.Billable(res.Kind) {
			b.newBilling = &model.BillingEvent{
				ID:             uuid.NewString(),
				ResourceRepoID: res.RepoID,
				ClientID:       record.GainingID,
				Reason:         model.BillingReasonTransfer,
				CostCents:      policy.CostCents,
				EventTime:      now,
			}
		}
	}

	record.Status = outcome
	record.ServerApprovePollIDs = nil
	record.ServerApproveBillingID = ""
	res.Statuses = res.Statuses.Without(model.StatusPendingTransfer)
	res.UpdateTime = now
	return b
}

func historyTypeFor(outcome model.TransferStatus) model.HistoryType {
	switch outcome {
	case model.TransferClientApproved, model.TransferServerApproved:
		return model.HistoryTransferApprove
	case model.TransferClientRejected:
		return model.HistoryTransferReject
	default:
		return model.HistoryTransferCancel
	}
}

func messageFor(outcome model.TransferStatus) string {
	switch outcome {
	case model.TransferClientApproved, model.TransferServerApproved:
		return "Transfer approved."
	case model.TransferClientRejected:
		return "Transfer rejected."
	default:
		return "Transfer cancelled."
	}
}
