package db

import "sync"

// eventType distinguishes between inbox event kinds.
type eventType int

const (
	// eventEnqueue carries a newly submitted operation to the run loop.
	eventEnqueue eventType = iota + 1
	// eventComplete carries an engine completion back to the run loop.
	eventComplete
)

// event is the message unit flowing through a queue's inbox.
type event struct {
	typ eventType
	op  *Operation

	// Completion payload, set only for eventComplete.
	res Result
	err error
}

// inbox is a thread-safe FIFO of enqueue and completion events.
//
// The inbox is unbounded so that callbacks running on the loop goroutine
// can enqueue follow-on operations (transaction steps, batch continuations)
// without blocking.
//
// Producers are arbitrary goroutines (callers submitting operations, the
// engine adapter reporting completions); the Queue's Run loop is the sole
// consumer. The buffered signal channel coalesces wakeups and enables
// context-aware waiting in the loop.
type inbox struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // signals event availability (buffered, size 1)
}

func newInbox() *inbox {
	return &inbox{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends an event. Safe from any goroutine.
// Returns false if the inbox has been closed.
func (in *inbox) Enqueue(e event) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return false
	}

	in.events = append(in.events, e)

	select {
	case in.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front event without blocking.
// Returns (event{}, false) if the inbox is empty.
func (in *inbox) TryDequeue() (event, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.events) == 0 {
		return event{}, false
	}

	e := in.events[0]

	// Nil out the slot so the operation and its payload can be collected
	// before the backing array is reallocated.
	in.events[0] = event{}

	if len(in.events) == 1 {
		in.events = in.events[:0]
	} else {
		in.events = in.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the inbox is closed, waking all waiters.
func (in *inbox) Wait() <-chan struct{} {
	return in.signal
}

// Len returns the number of pending events.
func (in *inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.events)
}

// Closed reports whether Close has been called.
func (in *inbox) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

// Close marks the inbox closed and wakes any blocked waiters.
// Further Enqueue calls return false.
func (in *inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return
	}

	in.closed = true
	close(in.signal)
}
