// Package db implements the asynchronous operation coordinator that sits
// between application code and an embedded SQLite engine.
//
// The coordinator provides guarantees the engine does not provide on its own:
//
//   - Strict per-connection FIFO dispatch with at most one statement in
//     flight at a time (the Queue).
//   - Cancellable result delivery: cancelling an operation's Reference
//     suppresses its callback without disturbing the statement already
//     handed to the engine (the Reference protocol).
//   - An explicit transaction state machine wrapping a contiguous run of
//     operations in a begin/commit/rollback envelope.
//   - Multi-statement batch execution under three failure policies,
//     including fail-fast with automatic rollback.
//
// Concurrency model: each Connection owns one Queue, and each Queue is
// drained by exactly one run-loop goroutine. The engine adapter posts
// completion messages to the Queue's inbox; the run loop is the sole
// consumer, so all callback delivery and "what runs next" decisions happen
// one completion at a time. There is no lock visible to callers.
//
// An operation the engine never completes stalls its Connection's queue
// indefinitely. The coordinator deliberately has no timeout.
package db
