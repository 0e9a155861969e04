package db

import "fmt"

// BatchPolicy selects how a batch reacts to a failing statement.
type BatchPolicy int

const (
	// BatchContinueOnError attempts every statement regardless of prior
	// failures. The final callback receives a nil error and one entry per
	// input statement; per-statement failures live on the entries.
	BatchContinueOnError BatchPolicy = iota + 1

	// BatchFailFast stops at the first failing statement. The final
	// callback receives the first error and the entries attempted so far,
	// the failing entry included. No implicit transaction is opened.
	BatchFailFast

	// BatchFailFastRollback behaves like BatchFailFast but wraps the
	// whole batch in a transaction: begin before the first statement,
	// rollback on any failure (guaranteeing zero net effect), commit on
	// full success.
	BatchFailFastRollback
)

func (p BatchPolicy) String() string {
	switch p {
	case BatchContinueOnError:
		return "continue-on-error"
	case BatchFailFast:
		return "fail-fast"
	case BatchFailFastRollback:
		return "fail-fast-rollback"
	default:
		return "unknown"
	}
}

// BatchEntry is the outcome of one attempted batch statement. Statements
// never attempted because an earlier one failed under a fail-fast policy
// have no entry.
type BatchEntry struct {
	Statement    string
	Err          error
	RowsAffected int64
	LastInsertID int64
	Rows         []Row
}

// BatchCallback receives the overall batch outcome and the ordered
// entries for every statement attempted.
type BatchCallback func(err error, entries []BatchEntry)

// RunBatch drives the statements through the connection's queue under the
// given policy. Statements interleave with any concurrently queued work
// in submission order; the batch holds no special position in the FIFO.
//
// paramSets may be nil (no parameters anywhere) or must have exactly one
// entry, possibly nil, per statement.
//
// Under BatchFailFastRollback a rollback failure after an earlier
// statement failure is surfaced as a *RollbackError so callers can tell
// "statement failed, state consistent" from "statement failed and
// recovery failed too".
func (c *Connection) RunBatch(statements []string, paramSets [][]any, policy BatchPolicy, done BatchCallback) {
	if done == nil {
		done = func(error, []BatchEntry) {}
	}
	if err := c.ensureReady(); err != nil {
		done(err, nil)
		return
	}
	if paramSets != nil && len(paramSets) != len(statements) {
		done(fmt.Errorf("db: batch has %d statements but %d parameter sets", len(statements), len(paramSets)), nil)
		return
	}

	b := &batchRun{
		conn:       c,
		statements: statements,
		params:     paramSets,
		policy:     policy,
		entries:    make([]BatchEntry, 0, len(statements)),
		done:       done,
	}

	if policy == BatchFailFastRollback {
		c.tx.Begin(func(err error) {
			if err != nil {
				done(err, nil)
				return
			}
			b.step(0)
		})
		return
	}

	b.step(0)
}

// batchRun carries one batch invocation through the queue. All fields
// after construction are touched only from queue callbacks, which run on
// the run-loop goroutine one at a time.
type batchRun struct {
	conn       *Connection
	statements []string
	params     [][]any
	policy     BatchPolicy
	entries    []BatchEntry
	done       BatchCallback
}

func (b *batchRun) step(i int) {
	if i == len(b.statements) {
		b.finish()
		return
	}

	statement := b.statements[i]
	var args []any
	if b.params != nil {
		args = b.params[i]
	}

	op := newOperation(statement, args, func(res Result, err error) {
		b.entries = append(b.entries, BatchEntry{
			Statement:    statement,
			Err:          err,
			RowsAffected: res.RowsAffected,
			LastInsertID: res.LastInsertID,
			Rows:         res.Rows,
		})
		if err != nil && b.policy != BatchContinueOnError {
			b.fail(err)
			return
		}
		b.step(i + 1)
	}, DispatchImmediate, b.policy == BatchFailFastRollback)

	if _, err := b.conn.queue.submit(op); err != nil {
		// Queue stopped mid-batch; no recovery possible.
		b.done(err, b.entries)
	}
}

// fail ends the batch after a statement failure, rolling back first when
// the policy opened a transaction.
func (b *batchRun) fail(cause error) {
	if b.policy != BatchFailFastRollback {
		b.done(cause, b.entries)
		return
	}
	b.conn.tx.Rollback(func(rbErr error) {
		if rbErr != nil {
			b.done(&RollbackError{Cause: cause, Err: rbErr}, b.entries)
			return
		}
		b.done(cause, b.entries)
	})
}

// finish ends a fully successful batch, committing first when the policy
// opened a transaction.
func (b *batchRun) finish() {
	if b.policy != BatchFailFastRollback {
		b.done(nil, b.entries)
		return
	}
	b.conn.tx.Commit(func(err error) {
		b.done(err, b.entries)
	})
}
