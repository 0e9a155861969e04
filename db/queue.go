package db

import (
	"context"
	"log/slog"
)

// Queue orders pending operations for one connection and guarantees at
// most one in-flight engine call at a time when serialization is enabled.
//
// All mutation of "what runs next" and "which callback fires" happens on
// the Run loop goroutine, one inbox event at a time. Mutual exclusion is
// an emergent property of that single-consumer design; there is no lock
// object exposed to callers.
//
// Thread-safety model:
//   - Enqueue / Prepare / Execute / Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Queue struct {
	adapter    Adapter
	serialized bool
	logger     *slog.Logger

	inbox *inbox

	// pending and inFlight are touched only from the Run loop goroutine.
	pending  []*Operation
	inFlight *Operation
}

// QueueOption configures a Queue at construction.
type QueueOption func(*Queue)

// WithSerialization enables or disables FIFO serialization. It defaults
// to enabled. With serialization disabled, enqueued operations dispatch
// to the engine immediately, without waiting on prior operations; callers
// are responsible for not racing non-idempotent statements in that mode.
//
// The choice is fixed at construction. Changing serialization while
// operations are in flight has no defined meaning, so there is
// deliberately no setter.
func WithSerialization(enabled bool) QueueOption {
	return func(q *Queue) {
		q.serialized = enabled
	}
}

// WithQueueLogger sets the logger used for dispatch tracing.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// NewQueue creates a queue dispatching to the given engine adapter.
// Serialization is enabled unless disabled via WithSerialization.
func NewQueue(adapter Adapter, opts ...QueueOption) *Queue {
	q := &Queue{
		adapter:    adapter,
		serialized: true,
		logger:     slog.Default(),
		inbox:      newInbox(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue submits a statement for dispatch and returns its reference
// synchronously, before the statement reaches the engine. The callback,
// if non-nil, is invoked on the Run loop goroutine with the completion
// result unless the reference is cancelled first.
//
// Returns ErrClosed if the queue has been stopped.
func (q *Queue) Enqueue(statement string, args []any, cb Callback) (*Reference, error) {
	return q.submit(newOperation(statement, args, cb, DispatchImmediate, false))
}

// Prepare constructs a delayed operation. The operation does not join the
// FIFO until Execute is called with a callback.
func (q *Queue) Prepare(statement string, args []any) *Operation {
	return newOperation(statement, args, nil, DispatchDelayed, false)
}

// Execute submits a previously prepared operation with the supplied
// callback attached. The operation joins the FIFO exactly as an immediate
// operation would.
//
// Returns ErrAlreadySubmitted if the operation was executed before, and
// ErrClosed if the queue has been stopped.
func (q *Queue) Execute(op *Operation, cb Callback) (*Reference, error) {
	if op.submitted.Load() {
		return nil, ErrAlreadySubmitted
	}
	op.cb = cb
	return q.submit(op)
}

// submit marks the operation submitted and posts it to the inbox.
func (q *Queue) submit(op *Operation) (*Reference, error) {
	if !op.submitted.CompareAndSwap(false, true) {
		return nil, ErrAlreadySubmitted
	}
	if !q.inbox.Enqueue(event{typ: eventEnqueue, op: op}) {
		return nil, ErrClosed
	}
	return op.ref, nil
}

// Run starts the single-consumer dispatch loop. Blocks until the context
// is cancelled or Stop is called.
//
// Must be called from exactly one goroutine. All callback delivery and
// dispatch decisions happen on this goroutine.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Debug("queue starting", "serialized", q.serialized)

	for {
		e, ok := q.inbox.TryDequeue()
		if ok {
			q.process(e)
			continue
		}

		// Only a closed and drained inbox ends the loop. An empty inbox
		// with a pending signal token is just a wake that raced the drain;
		// the buffered signal coalesces, so a token may be consumed after
		// the event it announced was already dequeued.
		if q.inbox.Closed() {
			q.logger.Debug("queue stopping: inbox closed")
			return nil
		}

		select {
		case <-ctx.Done():
			q.logger.Debug("queue stopping: context cancelled")
			q.inbox.Close()
			return ctx.Err()

		case <-q.inbox.Wait():
		}
	}
}

// Stop closes the inbox, which causes Run to return once drained.
// Completions arriving after Stop are dropped undelivered.
func (q *Queue) Stop() {
	q.inbox.Close()
}

// process handles one inbox event. Run loop goroutine only.
func (q *Queue) process(e event) {
	switch e.typ {
	case eventEnqueue:
		if !q.serialized {
			q.dispatch(e.op)
			return
		}
		q.pending = append(q.pending, e.op)
		q.advance()

	case eventComplete:
		q.deliver(e.op, e.res, e.err)
		if q.inFlight == e.op {
			q.inFlight = nil
			q.advance()
		}
	}
}

// advance dispatches the next pending operation if nothing is in flight.
// Run loop goroutine only.
func (q *Queue) advance() {
	if q.inFlight != nil || len(q.pending) == 0 {
		return
	}

	op := q.pending[0]
	q.pending[0] = nil
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}

	q.inFlight = op
	q.dispatch(op)
}

// dispatch hands one operation to the engine adapter. The completion is
// posted back to the inbox, keeping this loop the sole consumer of
// completion events. Run loop goroutine only.
func (q *Queue) dispatch(op *Operation) {
	q.logger.Debug("dispatching operation", "op", op.id, "statement", op.statement)

	q.adapter.Submit(op.statement, op.args, func(res Result, err error) {
		// A false return means the queue stopped while the statement was
		// executing; the completion is dropped undelivered.
		q.inbox.Enqueue(event{typ: eventComplete, op: op, res: res, err: err})
	})
}

// deliver runs one completion's callback handling step: mark the
// reference completed, then invoke the stored callback unless suppressed.
// Completion is recorded first so the reference reads as completed even
// from inside its own callback. Run loop goroutine only.
func (q *Queue) deliver(op *Operation, res Result, err error) {
	op.ref.completed.Store(true)
	if op.ref.suppressed.Load() {
		q.logger.Debug("delivery suppressed", "op", op.id)
		return
	}
	if op.cb != nil {
		op.cb(res, err)
	}
}
