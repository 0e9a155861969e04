package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when an operation is submitted to a
	// connection that has not been set up yet.
	ErrNotReady = errors.New("db: connection not ready")

	// ErrClosed is returned when an operation is submitted to a closed
	// connection or a stopped queue.
	ErrClosed = errors.New("db: connection closed")

	// ErrAlreadySubmitted is returned when a delayed operation is
	// executed a second time.
	ErrAlreadySubmitted = errors.New("db: operation already submitted")
)

// StateError reports an invalid transaction transition, such as a nested
// begin or a commit without an active transaction. State errors are
// reported synchronously and never reach the queue; the current
// transaction, if any, is unaffected.
type StateError struct {
	// Op is the attempted transition ("begin", "commit", "rollback").
	Op string

	// State is the coordinator state at the time of the call.
	State TxState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("db: %s not allowed in state %s", e.Op, e.State)
}

// IsStateError reports whether err is (or wraps) a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// RollbackError reports that recovery failed after an earlier failure:
// the original error triggered a rollback and the rollback itself also
// failed. Callers must treat this as a distinct, higher-severity
// condition: the database may be left in an inconsistent state.
type RollbackError struct {
	// Cause is the failure that triggered the rollback.
	Cause error

	// Err is the rollback failure.
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("db: rollback failed: %v (after: %v)", e.Err, e.Cause)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// IsRollbackError reports whether err is (or wraps) a RollbackError.
func IsRollbackError(err error) bool {
	var re *RollbackError
	return errors.As(err, &re)
}
