package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ConnState is a connection's lifecycle state.
type ConnState int

const (
	// ConnUnconfigured means the connection exists by name but has no
	// engine adapter yet.
	ConnUnconfigured ConnState = iota
	// ConnReady means the connection accepts operations.
	ConnReady
	// ConnClosed means the connection was shut down. Closed is terminal.
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnUnconfigured:
		return "unconfigured"
	case ConnReady:
		return "ready"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection identifies one logical database. It owns exactly one queue,
// one transaction coordinator and, via the migrate package, one ledger;
// none of these are ever shared with another connection.
type Connection struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	state    ConnState
	adapter  Adapter
	queue    *Queue
	tx       *txCoordinator
	loopDone chan struct{}
}

// ConnectionOption configures a connection at construction.
type ConnectionOption func(*Connection)

// WithLogger sets the connection's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = logger
	}
}

// NewConnection creates an unconfigured connection. It accepts no
// operations until Setup attaches an engine adapter.
func NewConnection(name string, opts ...ConnectionOption) *Connection {
	c := &Connection{
		name:   name,
		logger: slog.Default(),
		state:  ConnUnconfigured,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("conn", name)
	return c
}

// Name returns the connection's name.
func (c *Connection) Name() string { return c.name }

// State returns the connection's lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Setup attaches the engine adapter, builds the queue and transaction
// coordinator, and starts the run loop. Queue options (such as
// WithSerialization(false)) are fixed here for the connection's lifetime.
//
// Setup may be called once; calling it on a ready or closed connection
// is an error.
func (c *Connection) Setup(adapter Adapter, queueOpts ...QueueOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case ConnReady:
		return errors.New("db: connection already set up")
	case ConnClosed:
		return ErrClosed
	}

	opts := append([]QueueOption{WithQueueLogger(c.logger)}, queueOpts...)

	c.adapter = adapter
	c.queue = NewQueue(adapter, opts...)
	c.tx = newTxCoordinator(c.queue, c.logger)
	c.loopDone = make(chan struct{})
	c.state = ConnReady

	go func(q *Queue, done chan struct{}) {
		defer close(done)
		_ = q.Run(context.Background())
	}(c.queue, c.loopDone)

	c.logger.Info("connection ready")
	return nil
}

// Close stops the run loop, waits for it to drain, and closes the engine
// adapter if it supports closing. Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == ConnClosed {
		c.mu.Unlock()
		return nil
	}
	wasReady := c.state == ConnReady
	queue, adapter, loopDone := c.queue, c.adapter, c.loopDone
	c.state = ConnClosed
	c.mu.Unlock()

	if !wasReady {
		return nil
	}

	queue.Stop()
	<-loopDone

	var err error
	if closer, ok := adapter.(io.Closer); ok {
		err = closer.Close()
	}
	c.logger.Info("connection closed")
	return err
}

// ensureReady gates the operation surface on lifecycle state.
func (c *Connection) ensureReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case ConnReady:
		return nil
	case ConnClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// Exec enqueues one statement for dispatch and returns its reference
// synchronously. The callback, when non-nil, receives the completion on
// the run-loop goroutine unless cancelled first.
//
// Statements enqueued while a transaction is open, from the moment BEGIN
// is queued, join the envelope; their references are not individually
// cancellable.
func (c *Connection) Exec(statement string, args []any, cb Callback) (*Reference, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	return c.queue.submit(newOperation(statement, args, cb, DispatchImmediate, c.tx.inEnvelope()))
}

// Prepare constructs a delayed operation that joins the queue only when
// Execute is called.
func (c *Connection) Prepare(statement string, args []any) (*Operation, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	return c.queue.Prepare(statement, args), nil
}

// Execute submits a prepared operation with the supplied callback.
func (c *Connection) Execute(op *Operation, cb Callback) (*Reference, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if !op.submitted.Load() && c.tx.inEnvelope() {
		op.pinned = true
	}
	return c.queue.Execute(op, cb)
}

// Begin opens a transaction on this connection. See txCoordinator.
func (c *Connection) Begin(done func(error)) {
	if err := c.ensureReady(); err != nil {
		if done != nil {
			done(err)
		}
		return
	}
	c.tx.Begin(done)
}

// Commit commits the active transaction.
func (c *Connection) Commit(done func(error)) {
	if err := c.ensureReady(); err != nil {
		if done != nil {
			done(err)
		}
		return
	}
	c.tx.Commit(done)
}

// Rollback rolls back the active transaction.
func (c *Connection) Rollback(done func(error)) {
	if err := c.ensureReady(); err != nil {
		if done != nil {
			done(err)
		}
		return
	}
	c.tx.Rollback(done)
}

// TxState returns the transaction coordinator's state. Unconfigured and
// closed connections report idle.
func (c *Connection) TxState() TxState {
	c.mu.Lock()
	tx := c.tx
	c.mu.Unlock()
	if tx == nil {
		return TxIdle
	}
	return tx.State()
}
