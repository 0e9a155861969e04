package db

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Result carries the engine's completion payload for one statement.
// Rows is populated for row-returning statements; RowsAffected and
// LastInsertID for mutating statements.
type Result struct {
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
}

// Callback receives an operation's completion. The error is the engine's
// error, passed through verbatim, or nil on success. Callbacks run on the
// owning queue's run-loop goroutine; they may enqueue further operations
// but must not block.
type Callback func(res Result, err error)

// Adapter is the boundary toward the asynchronous SQL execution backend.
//
// Submit must report exactly one completion per call, from any goroutine,
// and must never deliver partial or streaming results. The coordinator has
// no way to cancel a submitted statement; it controls callback delivery
// only.
type Adapter interface {
	Submit(statement string, args []any, done func(Result, error))
}

// DispatchMode controls when an operation joins its queue's FIFO.
type DispatchMode int

const (
	// DispatchImmediate operations join the FIFO as soon as they are
	// enqueued.
	DispatchImmediate DispatchMode = iota + 1
	// DispatchDelayed operations are constructed up front and join the
	// FIFO only when Execute is called with a callback.
	DispatchDelayed
)

// Operation is one statement-plus-parameters unit of work. Immutable once
// submitted, except for the completion and suppression state tracked on
// its Reference.
type Operation struct {
	id        string
	statement string
	args      []any
	mode      DispatchMode
	cb        Callback

	// pinned operations belong to an open transaction envelope and are
	// never individually cancellable.
	pinned bool

	submitted atomic.Bool
	ref       *Reference
}

func newOperation(statement string, args []any, cb Callback, mode DispatchMode, pinned bool) *Operation {
	op := &Operation{
		id:        uuid.NewString(),
		statement: statement,
		args:      args,
		mode:      mode,
		cb:        cb,
		pinned:    pinned,
	}
	op.ref = &Reference{op: op}
	return op
}

// ID returns the operation's unique identifier, used for log correlation.
func (o *Operation) ID() string { return o.id }

// Statement returns the SQL text submitted to the engine.
func (o *Operation) Statement() string { return o.statement }

// Mode returns the operation's dispatch mode.
func (o *Operation) Mode() DispatchMode { return o.mode }

// Ref returns the operation's cancel handle.
func (o *Operation) Ref() *Reference { return o.ref }
