package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusSetWithWithoutAreCopies(t *testing.T) {
	base := NewStatusSet(StatusOK)

	with := base.With(StatusPendingTransfer)
	assert.True(t, with.Has(StatusPendingTransfer))
	assert.False(t, base.Has(StatusPendingTransfer), "With must not mutate the receiver")

	without := with.Without(StatusPendingTransfer)
	assert.False(t, without.Has(StatusPendingTransfer))
	assert.True(t, with.Has(StatusPendingTransfer), "Without must not mutate the receiver")
}

func TestTransferStatusIsTerminal(t *testing.T) {
	assert.False(t, TransferNone.IsTerminal())
	assert.False(t, TransferPending.IsTerminal())
	for _, ts := range []TransferStatus{
		TransferClientApproved, TransferClientRejected, TransferClientCancelled,
		TransferServerApproved, TransferServerCancelled,
	} {
		assert.True(t, ts.IsTerminal(), "status %s", ts)
	}
}

func TestResourceCloneIsDeep(t *testing.T) {
	res := &Resource{
		RepoID:             "1-ROID",
		Statuses:           NewStatusSet(StatusOK),
		EncodedSignedMarks: []string{"bWFyaw=="},
		Transfer:           &TransferRecord{Status: TransferPending, ServerApprovePollIDs: []string{"p1"}},
	}

	cp := res.Clone()
	cp.Statuses = cp.Statuses.With(StatusPendingTransfer)
	cp.Transfer.Status = TransferClientRejected
	cp.Transfer.ServerApprovePollIDs[0] = "other"
	cp.EncodedSignedMarks[0] = "changed"

	assert.False(t, res.Statuses.Has(StatusPendingTransfer))
	assert.Equal(t, TransferPending, res.Transfer.Status)
	assert.Equal(t, "p1", res.Transfer.ServerApprovePollIDs[0])
	assert.Equal(t, "bWFyaw==", res.EncodedSignedMarks[0])
}

func TestIsActiveBoundary(t *testing.T) {
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	res := &Resource{DeletionTime: at}

	// Active strictly before the deletion instant, gone at and after it.
	assert.True(t, res.IsActive(at.Add(-time.Nanosecond)))
	assert.False(t, res.IsActive(at))
	assert.False(t, res.IsActive(at.Add(time.Nanosecond)))
}

func TestLatestOf(t *testing.T) {
	a := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	assert.Equal(t, b, LatestOf(a, b))
	assert.Equal(t, b, LatestOf(b, a))
	assert.Equal(t, a, LatestOf(a, a))
}
