package transfer

import "github.com/kedh/regcore/pkg/errs"

// Named flow failures. All are user-correctable protocol errors except
// ErrContention, which marks an exhausted optimistic retry cycle. Callers
// compare with errors.Is or switch on errs.CodeOf.
var (
	// ErrResourceDoesNotExist: the target never existed, or is deleted as of
	// the command instant. Tombstones are invisible to mutation commands.
	ErrResourceDoesNotExist = errs.New(errs.CodeNotFound, "resource does not exist")

	// ErrNotPendingTransfer: approve/reject/cancel arrived but the resource
	// does not project to a PENDING transfer — either none was ever
	// requested, or it already resolved to a terminal status.
	ErrNotPendingTransfer = errs.New(errs.CodeStateMismatch, "resource has no pending transfer")

	// ErrTransferAlreadyPending: a second request while one is open.
	ErrTransferAlreadyPending = errs.New(errs.CodeStateMismatch, "a transfer is already pending for this resource")

	// ErrAlreadySponsored: the requester already sponsors the resource.
	ErrAlreadySponsored = errs.New(errs.CodeStateMismatch, "requester already sponsors this resource")

	// ErrTransferNotEligible: the eligibility policy (creation or previous
	// transfer cooldown) refuses a new request.
	ErrTransferNotEligible = errs.New(errs.CodeStateMismatch, "resource is not eligible for transfer")

	// ErrResourceNotOwned: the acting party does not hold the role the
	// action requires. Distinct from state mismatch so clients can tell
	// "not allowed" from "wrong state".
	ErrResourceNotOwned = errs.New(errs.CodeUnauthorized, "acting party may not perform this action on the resource")

	// ErrBadCredential: the supplied authorization credential does not match
	// the resource's. Raised before any state is touched.
	ErrBadCredential = errs.New(errs.CodeUnauthorized, "authorization credential does not match")

	// ErrMissingAuthInfo: the resource requires a credential the command did
	// not carry.
	ErrMissingAuthInfo = errs.New(errs.CodeMissingParameter, "authorization credential is required")

	// ErrRegistryCannotReject: rejection answers a request on the losing
	// sponsor's behalf; a registry operator acting over the parties cancels
	// instead, resolving SERVER_CANCELLED.
	ErrRegistryCannotReject = errs.New(errs.CodeUnauthorized, "rejection is reserved to the losing sponsor; registry operators cancel instead")

	// ErrContention: the bounded re-read/re-project retry cycle was exhausted
	// by concurrent writers. Transient; the caller may retry the command.
	ErrContention = errs.New(errs.CodeUnavailable, "too much contention on resource; retry the command")
)
