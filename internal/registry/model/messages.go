package model

import "time"

// PendingAck is the pending-action acknowledgment attached to a poll message
// that resolves a transfer. It echoes the transaction identifier pair of the
// original request so the requesting party can correlate the outcome.
type PendingAck struct {
	Trid    Trid
	Success bool
}

// PollMessage is a one-time notification addressed to a single party. An
// EventTime in the future marks the message speculative: it describes an
// automatic outcome that has not happened yet and must be retracted if an
// explicit action resolves the transfer differently first.
type PollMessage struct {
	ID             string
	ClientID       string
	ResourceRepoID string
	EventTime      time.Time
	Message        string

	TransferOutcome TransferStatus
	PendingAck      *PendingAck
}

// Speculative reports whether the message describes an outcome that has not
// yet occurred as of the instant.
func (p *PollMessage) Speculative(at time.Time) bool {
	return p.EventTime.After(at)
}

// BillingReason classifies a billing event.
type BillingReason string

const (
	BillingReasonCreate   BillingReason = "create"
	BillingReasonRenew    BillingReason = "renew"
	BillingReasonTransfer BillingReason = "transfer"
)

// BillingEvent is a financial record tied to a resource and a party. Billing
// events are only ever created inside a committed side-effect bundle.
type BillingEvent struct {
	ID             string
	ResourceRepoID string
	ClientID       string
	Reason         BillingReason
	CostCents      int64
	EventTime      time.Time
}

// HistoryType identifies the applied state transition an entry records.
type HistoryType string

const (
	HistoryCreate          HistoryType = "CREATE"
	HistoryDelete          HistoryType = "DELETE"
	HistoryTransferRequest HistoryType = "TRANSFER_REQUEST"
	HistoryTransferApprove HistoryType = "TRANSFER_APPROVE"
	HistoryTransferReject  HistoryType = "TRANSFER_REJECT"
	HistoryTransferCancel  HistoryType = "TRANSFER_CANCEL"
)

// HistoryEntry is the append-only audit record of one applied transition.
// Entries are never updated or deleted.
type HistoryEntry struct {
	ID             string
	ResourceRepoID string
	Type           HistoryType
	ClientID       string
	Time           time.Time
}
