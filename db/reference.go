package db

import "sync/atomic"

// Reference is the caller-held handle for one submitted operation.
//
// A Reference exposes exactly two capabilities: checking whether the
// operation has completed, and cancelling delivery of its callback.
// Cancellation is local bookkeeping only. It never removes the operation
// from the queue, never stops the statement the engine is already
// executing, and never changes which operation dispatches next.
type Reference struct {
	op         *Operation
	completed  atomic.Bool
	suppressed atomic.Bool
}

// IsCompleted reports whether the engine has completed the operation and
// the queue has reached its delivery step. The flag is set just before
// the callback is invoked, so the reference reads as completed even from
// inside its own callback.
func (r *Reference) IsCompleted() bool {
	return r.completed.Load()
}

// Cancel suppresses delivery of the operation's callback. It is a safe
// no-op after completion, and always a no-op for operations enqueued
// inside an open transaction (those are never individually cancellable).
//
// Suppression is read once, at delivery time, on the queue's run-loop
// goroutine: a Cancel racing the completion event may or may not suppress
// the callback, but it never affects the statement's engine-side effects.
func (r *Reference) Cancel() {
	if r.op.pinned || r.completed.Load() {
		return
	}
	r.suppressed.Store(true)
}

// Operation returns the operation this reference tracks.
func (r *Reference) Operation() *Operation { return r.op }
