// Package projection advances stored resources to their logically-current
// state at read time. A stored resource may describe a past state (most
// notably a pending transfer whose automatic-approval deadline has since
// passed); Project computes the state the resource would hold "now" without
// writing anything back.
package projection

import (
	"time"

	"github.com/kedh/regcore/internal/registry/model"
)

// EffectiveNow returns the instant projection actually evaluates at: never
// earlier than the resource's last real write, so a caller whose clock lags
// the writer cannot observe the resource regress.
func EffectiveNow(res *model.Resource, asOf time.Time) time.Time {
	return model.LatestOf(asOf, res.UpdateTime)
}

// Project returns a copy of res advanced to asOf. It is pure and idempotent:
// projecting an already-projected resource at the same instant is a no-op,
// and projecting at a later instant never un-resolves a resolved transfer.
func Project(res *model.Resource, asOf time.Time) *model.Resource {
	now := EffectiveNow(res, asOf)
	out := res.Clone()

	t := out.Transfer
	if t == nil || t.Status != model.TransferPending || t.ExpirationTime.After(now) {
		return out
	}

	// The automatic-approval deadline has passed unopposed: synthesize the
	// post-approval state exactly as the request recorded it. The stored row
	// is untouched; the speculative poll messages and billing event installed
	// at request time are the durable side effects, and they have now fired.
	t.Status = model.TransferServerApproved
	out.CurrentSponsor = t.GainingID
	out.LastTransferTime = t.ExpirationTime
	if !t.ApprovedExpiration.IsZero() {
		out.ExpirationTime = t.ApprovedExpiration
	}
	out.Statuses = out.Statuses.Without(model.StatusPendingTransfer)
	return out
}

// IsActive reports whether the resource is not deleted as of asOf, comparing
// against EffectiveNow rather than the raw instant so activity checks agree
// with what Project returns.
func IsActive(res *model.Resource, asOf time.Time) bool {
	return res.IsActive(EffectiveNow(res, asOf))
}
