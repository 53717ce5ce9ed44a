package errs

import (
	"errors"
	"fmt"
)

// Code classifies a failure so protocol-facing callers can disambiguate
// "wrong state" from "not allowed" from "you sent garbage" without string
// matching. Stores never return these; services translate sentinel errors
// and validation failures into coded errors at the flow boundary.
type Code string

const (
	// CodeNotFound: the target resource does not exist, or existed but is
	// deleted as of the query instant.
	CodeNotFound Code = "not_found"

	// CodeStateMismatch: the resource exists but is not in the state the
	// command requires (e.g. no pending transfer). User-correctable, never
	// retried automatically.
	CodeStateMismatch Code = "state_mismatch"

	// CodeUnauthorized: the acting party lacks the role or credential the
	// command requires. Distinct from CodeStateMismatch so clients can tell
	// "not allowed" from "wrong state".
	CodeUnauthorized Code = "unauthorized"

	// CodeMissingParameter: a required command parameter was absent. Raised
	// during admission, before any state is touched.
	CodeMissingParameter Code = "missing_parameter"

	// CodeCorrupt: stored data failed to decode. Internal and fatal for the
	// operation; never reported as a benign protocol error.
	CodeCorrupt Code = "corrupt"

	// CodeUnavailable: transient contention or downstream failure survived
	// the bounded retry cycle. The command may be retried by the caller.
	CodeUnavailable Code = "unavailable"

	// CodeInternal: everything else that should not happen.
	CodeInternal Code = "internal"
)

// Error carries a code and a human-readable message, optionally wrapping a
// cause. Compare with errors.Is against the named flow errors, or switch on
// CodeOf for transport mapping.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is treats two coded errors with the same code and message as equal so that
// named errors like ErrNotPendingTransfer work with errors.Is even after
// being returned through wrapping layers.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates a cause with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for anything uncoded.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
