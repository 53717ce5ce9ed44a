package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into the
// flow-level error taxonomy.
//
// These represent factual states about stored records, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: concurrent writer won; caller should re-read and retry
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or downstream temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
