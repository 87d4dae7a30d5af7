package payroll

import (
	"errors"
	"fmt"
)

// ErrNotDecodable marks a raw log that cannot be classified or whose payload
// cannot be decoded. It is always non-fatal: callers skip the log and keep
// processing the batch.
var ErrNotDecodable = errors.New("log not decodable")

// ValidationError reports malformed input caught before any call leaves the
// process.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RejectedOperationError wraps a write the contract refused or reverted. The
// provider's message is surfaced verbatim.
type RejectedOperationError struct {
	Op  string
	Err error
}

func (e *RejectedOperationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s rejected by the contract", e.Op)
	}
	return fmt.Sprintf("%s rejected: %v", e.Op, e.Err)
}

func (e *RejectedOperationError) Unwrap() error { return e.Err }

// TransientIOError wraps a network or provider failure during a read. The
// operation may be retried by the caller; no state was changed.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }
