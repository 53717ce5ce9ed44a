package transfer

import (
	"time"

	"github.com/kedh/regcore/internal/registry/model"
)

// Policy is the configurable transfer policy. The eligibility predicate is
// deliberately a policy object rather than hard-coded thresholds.
type Policy struct {
	// PendingPeriod is how long a request stays open before automatic
	// approval resolves it.
	PendingPeriod time.Duration

	// Cooldown gates how soon after creation or a completed transfer a new
	// request becomes eligible. Zero disables the gate.
	Cooldown time.Duration

	// CostCents is charged on approval of a billable kind.
	CostCents int64
}

// DefaultPolicy mirrors common registry practice: five-day pending period,
// one-day cooldown.
func DefaultPolicy() Policy {
	return Policy{
		PendingPeriod: 5 * 24 * time.Hour,
		Cooldown:      24 * time.Hour,
		CostCents:     1100,
	}
}

// EligibleForTransfer reports whether a new request may be installed on the
// projected resource at now. The pending-transfer check is handled separately
// so callers can distinguish the failures.
func (p Policy) EligibleForTransfer(res *model.Resource, now time.Time) bool {
	if p.Cooldown == 0 {
		return true
	}
	if now.Before(res.CreationTime.Add(p.Cooldown)) {
		return false
	}
	if !res.LastTransferTime.IsZero() && now.Before(res.LastTransferTime.Add(p.Cooldown)) {
		return false
	}
	return true
}

// Billable reports whether approval of a transfer of this kind produces a
// billing event.
func (p Policy) Billable(kind model.Kind) bool {
	return kind == model.KindDomain || kind == model.KindApplication
}
