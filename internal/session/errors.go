package session

import (
	"errors"
	"fmt"
)

// ErrCancelled is the completion outcome of a session that was cancelled on
// request. It is a deliberate result of user action, not a failure.
var ErrCancelled = errors.New("session: cancelled")

// FailureKind classifies a terminal transfer failure.
type FailureKind int

const (
	// FailureConnect covers refused or unreachable connections.
	FailureConnect FailureKind = iota
	// FailureTimeout covers network timeouts, including stalled streams
	// with no known total size.
	FailureTimeout
	// FailureHTTPStatus covers non-success HTTP responses.
	FailureHTTPStatus
	// FailureTruncated covers streams that ended before the expected
	// number of bytes arrived.
	FailureTruncated
	// FailureStorage covers local file errors: create, write, rename.
	FailureStorage
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnect:
		return "connection failed"
	case FailureTimeout:
		return "timed out"
	case FailureHTTPStatus:
		return "server error"
	case FailureTruncated:
		return "stream truncated"
	case FailureStorage:
		return "storage error"
	default:
		return "unknown failure"
	}
}

// TransferError describes why a transfer attempt failed. Attempts are never
// retried inside the session; retry policy belongs to the caller.
type TransferError struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
