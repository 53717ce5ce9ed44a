package model

import "time"

// Kind discriminates the resource variants that share transfer semantics.
// Variant-specific data lives in optional fields on Resource rather than an
// inheritance chain; the state machine only cares about the shared surface.
type Kind string

const (
	KindDomain      Kind = "domain"
	KindContact     Kind = "contact"
	KindHost        Kind = "host"
	KindApplication Kind = "application"
)

// Status is an explicit status flag on a resource.
type Status string

const (
	StatusOK              Status = "ok"
	StatusPendingTransfer Status = "pendingTransfer"
	StatusPendingDelete   Status = "pendingDelete"
	StatusInactive        Status = "inactive"
)

// StatusSet is the set of explicit status flags on a resource.
type StatusSet map[Status]struct{}

func NewStatusSet(statuses ...Status) StatusSet {
	s := make(StatusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

func (s StatusSet) Has(st Status) bool {
	_, ok := s[st]
	return ok
}

func (s StatusSet) Clone() StatusSet {
	out := make(StatusSet, len(s))
	for st := range s {
		out[st] = struct{}{}
	}
	return out
}

func (s StatusSet) With(st Status) StatusSet {
	out := s.Clone()
	out[st] = struct{}{}
	return out
}

func (s StatusSet) Without(st Status) StatusSet {
	out := s.Clone()
	delete(out, st)
	return out
}

// TransferStatus is the lifecycle state of a transfer record. PENDING is the
// only non-terminal state; every other non-NONE value is immutable history.
type TransferStatus string

const (
	TransferNone            TransferStatus = "NONE"
	TransferPending         TransferStatus = "PENDING"
	TransferClientApproved  TransferStatus = "CLIENT_APPROVED"
	TransferClientRejected  TransferStatus = "CLIENT_REJECTED"
	TransferClientCancelled TransferStatus = "CLIENT_CANCELLED"
	TransferServerApproved  TransferStatus = "SERVER_APPROVED"
	TransferServerCancelled TransferStatus = "SERVER_CANCELLED"
)

// IsTerminal reports whether the status resolves a transfer for good.
func (ts TransferStatus) IsTerminal() bool {
	switch ts {
	case TransferClientApproved, TransferClientRejected, TransferClientCancelled,
		TransferServerApproved, TransferServerCancelled:
		return true
	}
	return false
}

// Trid is the protocol transaction identifier pair echoed back in
// pending-action acknowledgments.
type Trid struct {
	ClientTransactionID string
	ServerTransactionID string
}

// TransferRecord captures one transfer request and its resolution. At most
// one PENDING record exists per resource at any instant; a resolved record is
// replaced only by a new request.
type TransferRecord struct {
	Status      TransferStatus
	GainingID   string
	LosingID    string
	RequestTime time.Time
	RequestTrid Trid

	// ExpirationTime is the automatic-approval deadline: if the transfer is
	// still PENDING at this instant, projection resolves it SERVER_APPROVED.
	ExpirationTime time.Time

	// ServerApprovePollIDs and ServerApproveBillingID are the speculative
	// records installed at request time for the automatic-approval outcome.
	// An explicit resolution before the deadline must retract them.
	ServerApprovePollIDs   []string
	ServerApproveBillingID string

	// ApprovedExpiration is the resource expiration applied when the transfer
	// resolves approved (zero when the kind carries no expiration).
	ApprovedExpiration time.Time
}

func (t *TransferRecord) Clone() *TransferRecord {
	if t == nil {
		return nil
	}
	out := *t
	out.ServerApprovePollIDs = append([]string(nil), t.ServerApprovePollIDs...)
	return &out
}

// EndOfTime is the sentinel deletion instant meaning "not deleted". A
// resource is active at instant T iff its DeletionTime is strictly after T.
var EndOfTime = time.Date(9999, time.December, 31, 23, 59, 59, 999000000, time.UTC)

// LatestOf returns the later of two instants.
func LatestOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Resource is one registry object. Resources are exclusively owned by the
// registry, mutated only through the state machine, and never destroyed; a
// delete stamps DeletionTime and keeps the tombstone for audit and lookup.
type Resource struct {
	RepoID         string
	Kind           Kind
	Name           string
	CurrentSponsor string

	CreatedBy    string
	CreationTime time.Time
	UpdateTime   time.Time
	DeletionTime time.Time

	Statuses StatusSet

	// AuthInfo is the transfer credential. Empty means the resource does not
	// require credential verification.
	AuthInfo string

	LastTransferTime time.Time

	// ExpirationTime is set for kinds with a registration period.
	ExpirationTime time.Time

	// EncodedSignedMarks holds base64 payloads attached to applications
	// registered during a launch phase.
	EncodedSignedMarks []string

	Transfer *TransferRecord
}

// IsActive reports whether the resource is not deleted as of the instant.
func (r *Resource) IsActive(at time.Time) bool {
	return r.DeletionTime.After(at)
}

// Clone returns a deep copy. Projection operates on copies so stored values
// are never mutated at read time.
func (r *Resource) Clone() *Resource {
	out := *r
	out.Statuses = r.Statuses.Clone()
	out.EncodedSignedMarks = append([]string(nil), r.EncodedSignedMarks...)
	out.Transfer = r.Transfer.Clone()
	return &out
}
