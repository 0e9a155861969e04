// Package sqlite adapts an embedded SQLite database to the coordinator's
// engine boundary. It is the opaque, single-connection, asynchronous SQL
// executor the db package dispatches to: one statement per Submit,
// exactly one completion per submission.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GetBreeze/breezedb/db"
)

// DB is a SQLite-backed engine adapter.
//
// The underlying pool is capped at a single connection, so every
// submitted statement, BEGIN/COMMIT/ROLLBACK envelopes included,
// executes on the same physical connection. Serialization of submissions
// is the coordinator's job, not the adapter's.
type DB struct {
	db          *sql.DB
	logger      *slog.Logger
	busyTimeout int
}

// Option configures the adapter at open time.
type Option func(*DB)

// WithLogger sets the adapter's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *DB) {
		d.logger = logger
	}
}

// WithBusyTimeout sets the SQLite busy_timeout pragma in milliseconds.
// Defaults to 5000.
func WithBusyTimeout(ms int) Option {
	return func(d *DB) {
		d.busyTimeout = ms
	}
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - busy timeout for lock contention
//   - foreign key enforcement
func Open(path string, opts ...Option) (*DB, error) {
	d := &DB{
		logger:      slog.Default(),
		busyTimeout: 5000,
	}
	for _, opt := range opts {
		opt(d)
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// also keeps transaction envelopes on one physical connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	d.db = sqlDB
	if err := d.applyPragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	d.logger.Debug("sqlite adapter open", "path", path)
	return d, nil
}

// Submit implements db.Adapter. The statement executes on the adapter's
// own goroutine and reports exactly one completion.
func (d *DB) Submit(statement string, args []any, done func(db.Result, error)) {
	go func() {
		res, err := d.execute(context.Background(), statement, args)
		done(res, err)
	}()
}

// Close closes the underlying database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Handle returns the underlying sql.DB for direct queries. Intended for
// tests and tooling; application code should go through the coordinator.
func (d *DB) Handle() *sql.DB {
	return d.db
}

func (d *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", d.busyTimeout),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := d.db.Exec(pragma); err != nil {
			return fmt.Errorf("sqlite: execute %q: %w", pragma, err)
		}
	}

	return nil
}

// execute runs one statement, choosing the row-query or exec path by the
// statement's leading keyword.
func (d *DB) execute(ctx context.Context, statement string, args []any) (db.Result, error) {
	if returnsRows(statement) {
		rows, err := d.queryRows(ctx, statement, args)
		if err != nil {
			return db.Result{}, err
		}
		return db.Result{Rows: rows}, nil
	}

	res, err := d.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return db.Result{}, err
	}

	var out db.Result
	// The sqlite3 driver reports both counts; on error the field stays zero.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func (d *DB) queryRows(ctx context.Context, statement string, args []any) ([]db.Row, error) {
	rows, err := d.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []db.Row
	for rows.Next() {
		values := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}

		row := make(db.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// returnsRows reports whether the statement's leading keyword marks it as
// row-returning.
func returnsRows(statement string) bool {
	head := strings.TrimSpace(statement)
	if i := strings.IndexAny(head, " \t\n\r;"); i >= 0 {
		head = head[:i]
	}
	switch strings.ToUpper(head) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}
