package db

import (
	"log/slog"
	"sync"
)

// TxState is the transaction coordinator's state. Exactly one coordinator
// exists per connection, so at most one transaction is open at a time.
type TxState int

const (
	// TxIdle means no transaction is open.
	TxIdle TxState = iota
	// TxBeginning means a begin statement is queued but not yet confirmed.
	TxBeginning
	// TxActive means the transaction is open and accepting operations.
	TxActive
	// TxCommitting means a commit statement is queued but not yet confirmed.
	TxCommitting
	// TxRollingBack means a rollback statement is queued but not yet confirmed.
	TxRollingBack
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxBeginning:
		return "beginning"
	case TxActive:
		return "active"
	case TxCommitting:
		return "committing"
	case TxRollingBack:
		return "rolling-back"
	default:
		return "unknown"
	}
}

// txCoordinator wraps a contiguous run of queued operations in a
// begin/commit/rollback envelope.
//
// The coordinator does not create a separate queue: BEGIN, COMMIT and
// ROLLBACK ride the same FIFO as every other operation for the
// connection, so queue ordering alone guarantees that everything between
// begin's success and commit/rollback belongs to one atomic unit at the
// engine level.
//
// State transitions happen on both caller goroutines (synchronous state
// errors) and the run-loop goroutine (completion callbacks), so the state
// field is mutex-guarded.
type txCoordinator struct {
	mu     sync.Mutex
	state  TxState
	queue  *Queue
	logger *slog.Logger
}

func newTxCoordinator(q *Queue, logger *slog.Logger) *txCoordinator {
	return &txCoordinator{
		state:  TxIdle,
		queue:  q,
		logger: logger,
	}
}

// State returns the coordinator's current state.
func (t *txCoordinator) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// inEnvelope reports whether an operation enqueued now would land inside
// the transaction envelope. True from the moment BEGIN is queued: the
// FIFO already holds the envelope opener, so anything enqueued behind it
// executes inside the transaction once BEGIN succeeds.
func (t *txCoordinator) inEnvelope() bool {
	s := t.State()
	return s == TxBeginning || s == TxActive
}

// Begin opens a transaction. Valid only from the idle state; a nested
// begin fails synchronously with a StateError without affecting the
// current transaction.
func (t *txCoordinator) Begin(done func(error)) {
	t.mu.Lock()
	if t.state != TxIdle {
		state := t.state
		t.mu.Unlock()
		t.invoke(done, &StateError{Op: "begin", State: state})
		return
	}
	t.state = TxBeginning
	t.mu.Unlock()

	t.logger.Debug("transaction beginning")
	t.enqueue("BEGIN", TxActive, done)
}

// Commit closes the transaction, keeping its effects. Valid only from
// the active state.
func (t *txCoordinator) Commit(done func(error)) {
	t.transition("commit", "COMMIT", TxCommitting, done)
}

// Rollback closes the transaction, discarding its effects. Valid only
// from the active state.
func (t *txCoordinator) Rollback(done func(error)) {
	t.transition("rollback", "ROLLBACK", TxRollingBack, done)
}

// transition moves from active through the given closing state to idle.
func (t *txCoordinator) transition(name, statement string, via TxState, done func(error)) {
	t.mu.Lock()
	if t.state != TxActive {
		state := t.state
		t.mu.Unlock()
		t.invoke(done, &StateError{Op: name, State: state})
		return
	}
	t.state = via
	t.mu.Unlock()

	t.logger.Debug("transaction closing", "op", name)
	t.enqueue(statement, TxIdle, done)
}

// enqueue submits one envelope statement as a pinned operation. On
// success the coordinator lands in onSuccess; on failure it returns to
// idle. A failed COMMIT or ROLLBACK also lands in idle: the engine's
// error is surfaced and the coordinator's view of the envelope resets.
func (t *txCoordinator) enqueue(statement string, onSuccess TxState, done func(error)) {
	op := newOperation(statement, nil, func(_ Result, err error) {
		t.mu.Lock()
		if err != nil {
			t.state = TxIdle
		} else {
			t.state = onSuccess
		}
		t.mu.Unlock()
		t.invoke(done, err)
	}, DispatchImmediate, true)

	if _, err := t.queue.submit(op); err != nil {
		t.mu.Lock()
		t.state = TxIdle
		t.mu.Unlock()
		t.invoke(done, err)
	}
}

func (t *txCoordinator) invoke(done func(error), err error) {
	if done != nil {
		done(err)
	}
}
