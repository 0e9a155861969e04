// Package migrate replays an ordered list of named migration units
// against a persisted ledger, using the connection's transaction
// coordinator for whole-invocation atomicity.
//
// Migrations are forward-only: a unit recorded in the ledger is never
// re-applied. Within one Run invocation all units form a single failure
// domain: any unit's failure rolls back every unit applied in that
// invocation, ledger records included, while units committed by previous
// invocations stay untouched.
package migrate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GetBreeze/breezedb/db"
)

// Unit is one named migration. Run must eventually call done exactly
// once, with nil on success; the runner treats a unit that never calls
// done as permanently stalled (there is deliberately no timeout).
type Unit interface {
	ID() string
	Run(c *db.Connection, done func(error))
}

// UnitFunc wraps a function as a migration unit.
func UnitFunc(id string, run func(c *db.Connection, done func(error))) Unit {
	return &funcUnit{id: id, run: run}
}

type funcUnit struct {
	id  string
	run func(*db.Connection, func(error))
}

func (u *funcUnit) ID() string { return u.id }

func (u *funcUnit) Run(c *db.Connection, done func(error)) { u.run(c, done) }

// NotificationKind is a per-unit outcome category.
type NotificationKind int

const (
	// NoteRunSuccess fires after a unit's Run signalled success.
	NoteRunSuccess NotificationKind = iota + 1
	// NoteRunError fires after a unit's Run signalled failure.
	NoteRunError
	// NoteSkip fires for a unit already present in the ledger.
	NoteSkip
	// NoteFinish fires once after the whole invocation committed.
	NoteFinish
)

func (k NotificationKind) String() string {
	switch k {
	case NoteRunSuccess:
		return "run-success"
	case NoteRunError:
		return "run-error"
	case NoteSkip:
		return "skip"
	case NoteFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Notification reports one per-unit outcome. Per-unit outcomes flow only
// through this side channel; the Run callback reports overall success or
// failure.
type Notification struct {
	Unit string
	Kind NotificationKind
	Err  error
}

// LedgerTable is the durable table recording applied migration
// identifiers, kept inside the same database the migrations target.
const LedgerTable = "schema_migrations"

const (
	createLedgerSQL = `CREATE TABLE IF NOT EXISTS ` + LedgerTable + ` (
	id         TEXT PRIMARY KEY,
	applied_at INTEGER NOT NULL
)`
	selectAppliedSQL = `SELECT id FROM ` + LedgerTable
	insertLedgerSQL  = `INSERT INTO ` + LedgerTable + ` (id, applied_at) VALUES (?, ?)`
)

// Runner replays migration units against a connection's ledger.
type Runner struct {
	notify func(Notification)
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotify attaches a listener for per-unit outcomes. The listener is
// invoked on the connection's run-loop goroutine and must not block.
func WithNotify(fn func(Notification)) Option {
	return func(r *Runner) {
		r.notify = fn
	}
}

// WithLogger sets the runner's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a migration runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays the units, in order, against the connection. For each unit
// it consults the ledger, skips identifiers already applied, and runs the
// rest inside one transaction shared by the whole invocation: ledger
// inserts ride alongside each unit's own statements, so a failing unit
// rolls back everything this invocation did.
//
// done receives overall success or failure only; per-unit outcomes flow
// through the WithNotify listener. A rollback failure after a unit
// failure surfaces as a *db.RollbackError.
func (r *Runner) Run(c *db.Connection, units []Unit, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if seen[u.ID()] {
			done(fmt.Errorf("migrate: duplicate identifier %q", u.ID()))
			return
		}
		seen[u.ID()] = true
	}

	inv := &invocation{
		runner: r,
		conn:   c,
		units:  units,
		done:   done,
	}
	inv.ensureLedger()
}

// invocation carries one Run call through its callback chain. After
// construction every field is touched only from queue callbacks, which
// run one at a time on the connection's run-loop goroutine.
type invocation struct {
	runner  *Runner
	conn    *db.Connection
	units   []Unit
	applied map[string]bool
	done    func(error)
}

func (v *invocation) ensureLedger() {
	_, err := v.conn.Exec(createLedgerSQL, nil, func(_ db.Result, err error) {
		if err != nil {
			v.done(fmt.Errorf("migrate: create ledger: %w", err))
			return
		}
		v.loadApplied()
	})
	if err != nil {
		v.done(err)
	}
}

func (v *invocation) loadApplied() {
	_, err := v.conn.Exec(selectAppliedSQL, nil, func(res db.Result, err error) {
		if err != nil {
			v.done(fmt.Errorf("migrate: read ledger: %w", err))
			return
		}
		v.applied = make(map[string]bool, len(res.Rows))
		for _, row := range res.Rows {
			if id, ok := row["id"].(string); ok {
				v.applied[id] = true
			}
		}
		v.begin()
	})
	if err != nil {
		v.done(err)
	}
}

func (v *invocation) begin() {
	v.conn.Begin(func(err error) {
		if err != nil {
			v.done(fmt.Errorf("migrate: begin: %w", err))
			return
		}
		v.step(0)
	})
}

func (v *invocation) step(i int) {
	if i == len(v.units) {
		v.commit()
		return
	}

	u := v.units[i]
	if v.applied[u.ID()] {
		v.runner.logger.Debug("migration already applied", "id", u.ID())
		v.emit(Notification{Unit: u.ID(), Kind: NoteSkip})
		v.step(i + 1)
		return
	}

	v.runner.logger.Info("applying migration", "id", u.ID())

	// A unit must signal done exactly once; extra signals are dropped.
	var once sync.Once
	u.Run(v.conn, func(err error) {
		first := false
		once.Do(func() { first = true })
		if !first {
			v.runner.logger.Warn("migration signalled done more than once", "id", u.ID())
			return
		}

		if err != nil {
			v.emit(Notification{Unit: u.ID(), Kind: NoteRunError, Err: err})
			v.abort(fmt.Errorf("migrate: unit %q: %w", u.ID(), err))
			return
		}
		v.emit(Notification{Unit: u.ID(), Kind: NoteRunSuccess})
		v.record(u, i)
	})
}

// record appends the unit's ledger row inside the invocation's
// transaction, then moves to the next unit.
func (v *invocation) record(u Unit, i int) {
	args := []any{u.ID(), v.runner.now().UTC().Unix()}
	_, err := v.conn.Exec(insertLedgerSQL, args, func(_ db.Result, err error) {
		if err != nil {
			v.abort(fmt.Errorf("migrate: record %q: %w", u.ID(), err))
			return
		}
		v.step(i + 1)
	})
	if err != nil {
		v.abort(err)
	}
}

// abort rolls back everything this invocation applied and reports the
// cause. If the rollback itself fails the two errors surface together.
func (v *invocation) abort(cause error) {
	v.conn.Rollback(func(rbErr error) {
		if rbErr != nil {
			v.done(&db.RollbackError{Cause: cause, Err: rbErr})
			return
		}
		v.done(cause)
	})
}

func (v *invocation) commit() {
	v.conn.Commit(func(err error) {
		if err != nil {
			v.done(fmt.Errorf("migrate: commit: %w", err))
			return
		}
		v.emit(Notification{Kind: NoteFinish})
		v.done(nil)
	})
}

func (v *invocation) emit(n Notification) {
	if v.runner.notify != nil {
		v.runner.notify(n)
	}
}
